package rates

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nemeshnorbert/reveal/internal/adapters/sqlite"
	"github.com/nemeshnorbert/reveal/internal/domain"
)

const mergeBatchSize = 512

// Merge copies every record from each source store into the target
// through the insert-or-ignore write path, making merges idempotent
// and order-independent. A failure on one source is reported and does
// not block the remaining sources.
func Merge(ctx context.Context, targetPath string, srcPaths []string) []Report {
	reports := make([]Report, 0, len(srcPaths))
	for _, srcPath := range srcPaths {
		if err := mergeOne(ctx, targetPath, srcPath); err != nil {
			message := fmt.Sprintf("Failed to merge %s into %s", srcPath, targetPath)
			logrus.WithError(err).Error(message)
			reports = append(reports, Report{Error: true, Description: message})
			continue
		}
		reports = append(reports, Report{Description: fmt.Sprintf("Successful merge from %s to %s", srcPath, targetPath)})
	}
	return reports
}

func mergeOne(ctx context.Context, targetPath, srcPath string) error {
	logrus.Infof("Merging rates from %s into %s", srcPath, targetPath)

	src, err := sqlite.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := sqlite.Open(targetPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	batch := make([]domain.RateRecord, 0, mergeBatchSize)
	err = src.EachRecord(ctx, func(record domain.RateRecord) error {
		batch = append(batch, record)
		if len(batch) >= mergeBatchSize {
			if putErr := dst.PutRecords(ctx, batch); putErr != nil {
				return putErr
			}
			batch = batch[:0]
		}
		return nil
	})
	if err != nil {
		return err
	}
	return dst.PutRecords(ctx, batch)
}
