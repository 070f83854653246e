package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"eaipviewer/internal/aip"
	"eaipviewer/internal/components/chrono"
	"eaipviewer/internal/components/telemetry"
	"eaipviewer/internal/eaip"
	"eaipviewer/internal/history"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("eaipviewer/internal/pipeline")

// Portal is the part of *eaip.Client the pipeline drives.
type Portal interface {
	Login(ctx context.Context) error
	CurrentCatalog(ctx context.Context) (eaip.Catalog, error)
}

type HistoryRecorder interface {
	Record(ctx context.Context, rec history.RunRecord) (int64, error)
}

type Options struct {
	// defaults to 3
	LoginAttempts int
	// defaults to 3
	CatalogAttempts int
	// defaults to 5 seconds
	CatalogDelay time.Duration
	// base url document locators are resolved against, defaults to
	// eaip.DefaultBaseUrl
	BaseUrl string
	// file the locators are written to, skipped when empty
	LocatorsPath string
	// receives the rendered tree, skipped when nil
	Output io.Writer
	// skipped when nil
	History   HistoryRecorder
	Telemetry telemetry.API
	// defaults to the portal's time zone
	Clock chrono.API
}

type Report struct {
	Package eaip.Package
	Result  aip.Result
	// 0 when the run was not recorded
	RunId int64
}

const (
	report_pipeline_login   = "pipeline.login"
	report_pipeline_catalog = "pipeline.catalog"
	report_pipeline_history = "pipeline.history"
)

type runner struct {
	portal Portal
	opts   Options
	tel    telemetry.API
}

func (r runner) login(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= r.opts.LoginAttempts; attempt++ {
		err = r.portal.Login(ctx)
		if err == nil {
			return nil
		}
		r.tel.ReportWarning(report_pipeline_login, attempt, err)

		var authErr *eaip.AuthError
		if !errors.As(err, &authErr) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (r runner) catalog(ctx context.Context) (eaip.Catalog, error) {
	var err error
	for attempt := 1; attempt <= r.opts.CatalogAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(r.opts.CatalogDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return eaip.Catalog{}, ctx.Err()
			case <-timer.C:
			}
		}

		var catalog eaip.Catalog
		catalog, err = r.portal.CurrentCatalog(ctx)
		if err == nil {
			return catalog, nil
		}
		r.tel.ReportWarning(report_pipeline_catalog, attempt, err)
		if ctx.Err() != nil {
			return eaip.Catalog{}, err
		}
	}
	return eaip.Catalog{}, err
}

func writeLocators(path string, locators []aip.Locator) error {
	var buf bytes.Buffer
	err := aip.WriteLocators(&buf, locators)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Run logs in, fetches the current catalog, filters it, writes the
// locators and records the run.
func Run(ctx context.Context, portal Portal, opts Options) (Report, error) {
	if opts.LoginAttempts < 1 {
		opts.LoginAttempts = 3
	}
	if opts.CatalogAttempts < 1 {
		opts.CatalogAttempts = 3
	}
	if opts.CatalogDelay == 0 {
		opts.CatalogDelay = 5 * time.Second
	}
	if opts.BaseUrl == "" {
		opts.BaseUrl = eaip.DefaultBaseUrl
	}
	if opts.Clock == nil {
		clock, err := chrono.NewStandardImpl()
		if err != nil {
			return Report{}, err
		}
		opts.Clock = clock
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	r := runner{
		portal: portal,
		opts:   opts,
		tel:    telemetry.NewScopedAPI("pipeline", tel),
	}

	ctx, span := tracer.Start(ctx, "pipeline:Run")
	defer span.End()
	fail := func(err error) (Report, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Report{}, err
	}

	startedAt := opts.Clock.Now()

	err := r.login(ctx)
	if err != nil {
		return fail(fmt.Errorf("login: %w", err))
	}
	catalog, err := r.catalog(ctx)
	if err != nil {
		return fail(fmt.Errorf("fetch catalog: %w", err))
	}

	resolver := aip.NewResolver(opts.BaseUrl, catalog.Package.FilePath)
	result := aip.FilterRaw(catalog.Raw, resolver, r.tel)
	span.SetAttributes(
		attribute.String("release", catalog.Package.DataName),
		attribute.Int("nodes", aip.Count(result.Tree)),
		attribute.Int("locators", len(result.Locators)),
	)

	if opts.Output != nil {
		err = aip.Render(opts.Output, result.Tree)
		if err != nil {
			return fail(err)
		}
	}
	if opts.LocatorsPath != "" {
		err = writeLocators(opts.LocatorsPath, result.Locators)
		if err != nil {
			return fail(fmt.Errorf("write locators: %w", err))
		}
		r.tel.ReportDebug("locators written", opts.LocatorsPath, len(result.Locators))
	}

	report := Report{Package: catalog.Package, Result: result}
	if opts.History != nil {
		id, err := opts.History.Record(ctx, history.RunRecord{
			StartedAt:  startedAt,
			FinishedAt: opts.Clock.Now(),
			Release:    catalog.Package.DataName,
			FilePath:   catalog.Package.FilePath,
			KeptNodes:  aip.Count(result.Tree),
			Locators:   result.Locators,
		})
		if err != nil {
			r.tel.ReportWarning(report_pipeline_history, err)
		} else {
			report.RunId = id
		}
	}
	return report, nil
}
