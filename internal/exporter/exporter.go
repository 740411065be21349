// File: internal/exporter/exporter.go
package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plattops/xviol/internal/config"
	"github.com/plattops/xviol/internal/reporting"
	"github.com/plattops/xviol/internal/xray"
)

// XrayAPI is the slice of the Xray client the exporter drives.
type XrayAPI interface {
	GetWatch(ctx context.Context, name string) (*xray.Watch, error)
	FetchAllViolations(ctx context.Context, watch string, pageSize int, includeDetails bool, fn xray.PageFunc) (*xray.FetchStats, error)
}

// UserResolver maps repository names to the users responsible for them.
type UserResolver interface {
	ResolveUsers(ctx context.Context, repos []string) (map[string]string, error)
}

// Summary describes one finished export run.
type Summary struct {
	RunID      string
	Watch      string
	Total      int
	Fetched    int
	Pages      int
	Repos      int
	OutputPath string
	Duration   time.Duration
}

// Exporter runs the fetch, flatten, enrich, write pipeline for one watch.
type Exporter struct {
	cfg      *config.Config
	client   XrayAPI
	resolver UserResolver
	logger   *zap.Logger
}

// New wires an Exporter. resolver may be nil when enrichment is disabled.
func New(cfg *config.Config, client XrayAPI, resolver UserResolver, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		cfg:      cfg,
		client:   client,
		resolver: resolver,
		logger:   logger.Named("exporter"),
	}
}

// Run exports every violation of the named watch into the enriched report and
// returns a summary of the run. A watch with no violations produces no files.
func (e *Exporter) Run(ctx context.Context, watch string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString(), Watch: watch}
	logger := e.logger.With(zap.String("run_id", summary.RunID), zap.String("watch", watch))

	// 1. Validation. A typo'd watch name should fail here, not after paging.
	w, err := e.client.GetWatch(ctx, watch)
	if err != nil {
		return nil, err
	}
	logger.Info("Watch validated", zap.Bool("active", w.GeneralData.Active))

	format := e.cfg.Export.Format
	delim := reporting.Delim(format)
	rawPath := filepath.Join(e.cfg.Export.OutputDir, reporting.RawFileName(watch, format))

	// 2. Fetch and flatten, streaming each page into the raw report. The file
	// is created once the first page arrives, so an empty watch touches
	// nothing on disk.
	var (
		rows      []reporting.Row
		rawFile   *os.File
		rawWriter reporting.RowWriter
	)
	defer func() {
		if rawFile != nil {
			rawFile.Close()
		}
	}()
	closeRaw := func() error {
		if rawFile == nil {
			return nil
		}
		if err := rawWriter.Flush(); err != nil {
			return err
		}
		err := rawFile.Close()
		rawFile = nil
		return err
	}

	stats, err := e.client.FetchAllViolations(ctx, watch, e.cfg.Export.PageSize, e.cfg.Export.IncludeDetails,
		func(page int, violations []xray.Violation) error {
			if rawFile == nil {
				f, err := createFile(rawPath)
				if err != nil {
					return err
				}
				rawFile = f
				rawWriter = reporting.NewWriter(f, delim)
				if err := rawWriter.WriteHeader(reporting.Header()); err != nil {
					return fmt.Errorf("failed to write report header: %w", err)
				}
			}
			for _, v := range violations {
				row := reporting.Flatten(v)
				rows = append(rows, row)
				if err := rawWriter.WriteRow(row.Fields()); err != nil {
					return fmt.Errorf("failed to write violation row: %w", err)
				}
			}
			return nil
		})
	if err != nil {
		if cerr := closeRaw(); cerr == nil && len(rows) > 0 {
			logger.Warn("Keeping partial raw report after interrupted fetch", zap.String("path", rawPath))
		}
		return nil, err
	}
	summary.Total, summary.Fetched, summary.Pages = stats.Total, stats.Fetched, stats.Pages

	if stats.Total == 0 {
		summary.Duration = time.Since(start)
		return summary, nil
	}

	if err := closeRaw(); err != nil {
		return nil, fmt.Errorf("failed to finalize raw report %s: %w", rawPath, err)
	}

	// 3. Collect the repositories that need an owner, in first-appearance
	// order.
	repos := uniqueRepos(rows)
	summary.Repos = len(repos)
	logger.Info("Flattened violations", zap.Int("rows", len(rows)), zap.Int("unique_repos", len(repos)))

	// 4. Resolve responsible users.
	users := make(map[string]string)
	if e.cfg.Enrich.Enabled && e.resolver != nil {
		logger.Info("Resolving responsible users", zap.Int("repos", len(repos)))
		users, err = e.resolver.ResolveUsers(ctx, repos)
		if err != nil {
			logger.Warn("User resolution was interrupted, keeping raw report", zap.String("path", rawPath))
			return nil, err
		}
	} else {
		logger.Info("Enrichment disabled, Users column will carry NA")
	}

	// 5. Write the final report with the Users column joined on.
	finalPath := e.cfg.Export.Output
	if finalPath == "" {
		finalPath = filepath.Join(e.cfg.Export.OutputDir, reporting.EnrichedFileName(watch, format))
	}
	if err := writeEnriched(finalPath, delim, rows, users); err != nil {
		return nil, err
	}
	summary.OutputPath = finalPath

	// 6. The raw report only exists to survive a crash mid-run; drop it now
	// that the enriched file is on disk.
	if e.cfg.Export.KeepRaw {
		logger.Info("Keeping raw report", zap.String("path", rawPath))
	} else if err := os.Remove(rawPath); err != nil {
		logger.Warn("Could not remove raw report", zap.String("path", rawPath), zap.Error(err))
	}

	// 7. Summarize.
	summary.Duration = time.Since(start)
	logger.Info("Export complete",
		zap.Int("total", summary.Total),
		zap.Int("fetched", summary.Fetched),
		zap.Int("pages", summary.Pages),
		zap.Int("repos", summary.Repos),
		zap.String("output", summary.OutputPath),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// uniqueRepos collects RepoName values in first-appearance order, skipping
// the NA placeholder.
func uniqueRepos(rows []reporting.Row) []string {
	seen := make(map[string]struct{}, len(rows))
	var repos []string
	for _, row := range rows {
		if row.RepoName == reporting.NA {
			continue
		}
		if _, ok := seen[row.RepoName]; ok {
			continue
		}
		seen[row.RepoName] = struct{}{}
		repos = append(repos, row.RepoName)
	}
	return repos
}

// writeEnriched writes the final report, appending each row's Users value.
// Rows whose repository never resolved get NA.
func writeEnriched(path string, delim rune, rows []reporting.Row, users map[string]string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := reporting.NewWriter(f, delim)
	if err := w.WriteHeader(reporting.EnrichedHeader()); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, row := range rows {
		assigned, ok := users[row.RepoName]
		if !ok || assigned == "" {
			assigned = reporting.NA
		}
		if err := w.WriteRow(append(row.Fields(), assigned)); err != nil {
			return fmt.Errorf("failed to write enriched row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush report %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close report %s: %w", path, err)
	}
	return nil
}

// createFile creates path, making parent directories as needed.
func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}
