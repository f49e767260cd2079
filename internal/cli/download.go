package cli

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/nemeshnorbert/reveal/internal/config"
	"github.com/nemeshnorbert/reveal/internal/domain"
	"github.com/nemeshnorbert/reveal/internal/rates"
)

func newDownloadCmd() *cobra.Command {
	var (
		apis        []string
		beginDate   string
		endDate     string
		symbols     []string
		batchSize   int
		readDelay   int
		readRetries int
	)

	cmd := &cobra.Command{
		Use:   "download <path>",
		Short: "Download historical rates from external providers into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(apis) == 0 {
				apis = cfg.Download.Providers
			}
			if !cmd.Flags().Changed("batch-size") {
				batchSize = cfg.Download.BatchSizeDays
			}
			if !cmd.Flags().Changed("read-delay") {
				readDelay = cfg.Download.ReadDelaySeconds
			}
			if !cmd.Flags().Changed("read-retries") {
				readRetries = cfg.Download.ReadRetries
			}
			if endDate == "" {
				endDate = domain.FormatDate(time.Now().UTC())
			}
			begin, err := domain.ParseDate(beginDate)
			if err != nil {
				return fmt.Errorf("invalid begin date %q: %w", beginDate, err)
			}
			end, err := domain.ParseDate(endDate)
			if err != nil {
				return fmt.Errorf("invalid end date %q: %w", endDate, err)
			}

			credentials := make(map[string][]string, len(apis))
			for _, api := range apis {
				appIDs, err := config.Credentials(api)
				if err != nil {
					return err
				}
				credentials[api] = appIDs
			}

			params := rates.DownloadParams{
				StorePath:     args[0],
				ProviderNames: apis,
				Credentials:   credentials,
				BeginDate:     begin,
				EndDate:       end,
				Symbols:       symbols,
				BatchSize:     batchSize,
				ReadDelay:     time.Duration(readDelay) * time.Second,
				ReadRetries:   readRetries,
			}
			downloader := rates.NewDownloader(clockwork.NewRealClock())
			return downloader.Download(cmd.Context(), params)
		},
	}

	cmd.Flags().StringSliceVar(&apis, "apis", nil,
		fmt.Sprintf("providers to download from, in priority order (%v)", rates.ProviderNames()))
	cmd.Flags().StringVar(&beginDate, "begin-date", "1999-01-01", "first date to download rates for (inclusive)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "first date not to download (exclusive); today when unset")
	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "currencies to download; all available when unset")
	cmd.Flags().IntVar(&batchSize, "batch-size", 30, "days downloaded into one staging store")
	cmd.Flags().IntVar(&readDelay, "read-delay", 0, "delay in seconds between batches")
	cmd.Flags().IntVar(&readRetries, "read-retries", 3, "retries on a failed request")
	return cmd
}
