package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/nemeshnorbert/reveal/internal/adapters/sqlite"
	"github.com/nemeshnorbert/reveal/internal/domain"
)

// Report is the outcome of one unit of backfill work (a day download
// or a store merge). Failures are collected and logged at the end of a
// run instead of aborting it.
type Report struct {
	Error       bool   `json:"error"`
	Description string `json:"description"`
}

// DownloadParams configures one backfill run over [BeginDate, EndDate).
type DownloadParams struct {
	// StorePath is the canonical store the run backfills. It must
	// already exist.
	StorePath string

	// ProviderNames is the ordered provider priority list; Credentials
	// maps each name to its ordered credential list.
	ProviderNames []string
	Credentials   map[string][]string

	BeginDate time.Time // inclusive
	EndDate   time.Time // exclusive, no later than today

	// Symbols to download. Nil means the union of all providers'
	// catalogs.
	Symbols []string

	BatchSize   int           // days per staging store, > 0
	ReadDelay   time.Duration // inter-batch sleep, >= 0
	ReadRetries int           // transport retries per request, > 0
}

// Downloader backfills a date range into a store: the range is split
// into batches, each batch is downloaded day by day into a fresh
// staging store, and the staging stores are merged into the canonical
// one at the end. Work is strictly sequential as a rate-limit courtesy.
type Downloader struct {
	clock         clockwork.Clock
	buildProvider func(name string, credentials []string, readRetries int) (Provider, error)
}

func NewDownloader(clock clockwork.Clock) *Downloader {
	return &Downloader{clock: clock, buildProvider: NewProvider}
}

// Download runs one backfill. Parameter violations and store lifecycle
// errors are fatal and reported before any network I/O; individual bad
// days and failed merges are logged and tolerated.
func (d *Downloader) Download(ctx context.Context, params DownloadParams) error {
	if err := d.validate(params); err != nil {
		return err
	}

	providers := make([]Provider, 0, len(params.ProviderNames))
	for _, name := range params.ProviderNames {
		provider, err := d.buildProvider(name, params.Credentials[name], params.ReadRetries)
		if err != nil {
			return err
		}
		providers = append(providers, provider)
	}

	execID := uuid.NewString()
	logrus.Infof("Starting rates download %s into %s", execID, params.StorePath)

	stagingDir, err := os.MkdirTemp("", "reveal-rates-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	reader := newFallbackReader(ctx, providers)

	var stagingPaths []string
	var dayReports []Report
	ranges := splitDateRanges(params.BeginDate, params.EndDate, params.BatchSize)
	for _, rng := range ranges {
		name := fmt.Sprintf("rates_%s_%s.db", domain.FormatDate(rng.begin), domain.FormatDate(rng.end))
		stagingPath := filepath.Join(stagingDir, name)
		if err = sqlite.Create(stagingPath); err != nil {
			return err
		}
		batchReports, err := d.downloadBatch(ctx, reader, stagingPath, rng, params.Symbols)
		if err != nil {
			return err
		}
		stagingPaths = append(stagingPaths, stagingPath)
		dayReports = append(dayReports, batchReports...)

		if params.ReadDelay > 0 {
			logrus.Infof("Sleeping for %s before the next batch", params.ReadDelay)
			d.clock.Sleep(params.ReadDelay)
		}
	}
	logFailedReports("downloads", execID, dayReports)

	mergeReports := Merge(ctx, params.StorePath, stagingPaths)
	logFailedReports("merges", execID, mergeReports)

	logrus.Infof("Rates download %s finished", execID)
	return nil
}

func (d *Downloader) validate(params DownloadParams) error {
	if !sqlite.Exists(params.StorePath) {
		return fmt.Errorf("%w: %s", domain.ErrStoreNotFound, params.StorePath)
	}
	if len(params.ProviderNames) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	if params.BeginDate.After(params.EndDate) {
		return fmt.Errorf("begin date %s must not be after end date %s",
			domain.FormatDate(params.BeginDate), domain.FormatDate(params.EndDate))
	}
	year, month, day := d.clock.Now().Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if params.EndDate.After(today) {
		return fmt.Errorf("end date %s must not be later than today %s",
			domain.FormatDate(params.EndDate), domain.FormatDate(today))
	}
	if params.ReadDelay < 0 {
		return fmt.Errorf("read delay must be non-negative, got %s", params.ReadDelay)
	}
	if params.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", params.BatchSize)
	}
	if params.ReadRetries <= 0 {
		return fmt.Errorf("read retries must be positive, got %d", params.ReadRetries)
	}
	return nil
}

func (d *Downloader) downloadBatch(ctx context.Context, reader *fallbackReader, stagingPath string, rng dateRange, symbols []string) ([]Report, error) {
	staging, err := sqlite.Open(stagingPath)
	if err != nil {
		return nil, err
	}
	defer staging.Close()

	logrus.Infof("Dates from %s inclusive to %s exclusive",
		domain.FormatDate(rng.begin), domain.FormatDate(rng.end))

	var reports []Report
	for day := rng.begin; day.Before(rng.end); day = day.AddDate(0, 0, 1) {
		reports = append(reports, downloadDay(ctx, reader, staging, domain.FormatDate(day), symbols))
	}
	return reports, nil
}

// downloadDay never fails the run: any read or write error is recorded
// as that day's failure report and the loop moves on.
func downloadDay(ctx context.Context, reader *fallbackReader, staging *sqlite.Store, date string, symbols []string) Report {
	logrus.Infof("Downloading rates for date %s", date)
	rates, err := reader.read(ctx, date, symbols)
	if err == nil {
		logrus.Infof("Saving rates for %s", date)
		err = writeDay(ctx, staging, date, rates)
	}
	if err != nil {
		message := fmt.Sprintf("Failed to download rates for date %s", date)
		logrus.WithError(err).Error(message)
		return Report{Error: true, Description: message}
	}
	return Report{Description: fmt.Sprintf("Successful download for date %s", date)}
}

func writeDay(ctx context.Context, staging *sqlite.Store, date string, rates map[string]*float64) error {
	records := make([]domain.RateRecord, 0, len(rates))
	for symbol, rate := range rates {
		if rate == nil {
			continue
		}
		records = append(records, domain.RateRecord{Date: date, Symbol: symbol, Rate: *rate})
	}
	return staging.PutRecords(ctx, records)
}

type dateRange struct {
	begin time.Time // inclusive
	end   time.Time // exclusive
}

func splitDateRanges(begin, end time.Time, batchDays int) []dateRange {
	var ranges []dateRange
	for cursor := begin; cursor.Before(end); {
		next := cursor.AddDate(0, 0, batchDays)
		if next.After(end) {
			next = end
		}
		ranges = append(ranges, dateRange{begin: cursor, end: next})
		cursor = next
	}
	return ranges
}

// fallbackReader is the session-scoped ordered failover used by
// downloads, separate from the per-account circuit breaker: providers
// are tried in priority order for the symbols still missing, and a
// provider that reports total failure is marked unavailable for the
// rest of the whole run.
type fallbackReader struct {
	providers []Provider
	hasAccess []bool
	catalog   []string // union of the providers' symbol catalogs
}

func newFallbackReader(ctx context.Context, providers []Provider) *fallbackReader {
	hasAccess := make([]bool, len(providers))
	for i := range hasAccess {
		hasAccess[i] = true
	}

	catalogSet := make(map[string]struct{})
	for _, provider := range providers {
		symbols, err := provider.GetSymbols(ctx)
		if err != nil {
			logrus.WithError(err).Warnf("Provider %s contributed no symbols to the catalog", provider.Name())
			continue
		}
		for _, symbol := range symbols {
			catalogSet[symbol] = struct{}{}
		}
	}
	catalog := make([]string, 0, len(catalogSet))
	for symbol := range catalogSet {
		catalog = append(catalog, symbol)
	}

	return &fallbackReader{providers: providers, hasAccess: hasAccess, catalog: catalog}
}

func (r *fallbackReader) read(ctx context.Context, date string, symbols []string) (map[string]*float64, error) {
	if symbols == nil {
		symbols = r.catalog
	}
	rates := make(map[string]*float64, len(symbols))
	for _, symbol := range symbols {
		rates[symbol] = nil
	}

	for i, provider := range r.providers {
		if !r.anyAccess() {
			return nil, domain.ErrAllProvidersUnavailable
		}
		if !r.hasAccess[i] {
			continue
		}

		var outstanding []domain.USDBid
		for symbol, rate := range rates {
			if rate == nil {
				outstanding = append(outstanding, domain.USDBid{Date: date, Symbol: symbol})
			}
		}
		if len(outstanding) == 0 {
			break
		}

		logrus.Debugf("Using provider %s for %d symbols on %s", provider.Name(), len(outstanding), date)
		got, err := provider.GetRates(ctx, outstanding)
		if err != nil {
			logrus.WithError(err).Warnf("Provider %s is unavailable for the rest of the run", provider.Name())
			r.hasAccess[i] = false
			continue
		}
		for j, bid := range outstanding {
			if got[j] != nil {
				rates[bid.Symbol] = got[j]
			}
		}
	}
	return rates, nil
}

func (r *fallbackReader) anyAccess() bool {
	for _, ok := range r.hasAccess {
		if ok {
			return true
		}
	}
	return false
}

func logFailedReports(kind string, execID string, reports []Report) {
	var failures []Report
	for _, report := range reports {
		if report.Error {
			failures = append(failures, report)
		}
	}
	if len(failures) == 0 {
		logrus.Infof("No failed %s in run %s", kind, execID)
		return
	}
	payload, err := json.MarshalIndent(failures, "", "    ")
	if err != nil {
		logrus.WithError(err).Errorf("Failed to render %s failure report for run %s", kind, execID)
		return
	}
	logrus.Infof("Failed %s in run %s:\n%s", kind, execID, payload)
}
