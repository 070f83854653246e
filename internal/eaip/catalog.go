package eaip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"eaipviewer/internal/components/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StatusCurrentlyIssued marks the one package that is the active release.
const StatusCurrentlyIssued = "CURRENTLY_ISSUE"

// Package describes one data release.
type Package struct {
	DataName   string `json:"dataName"`
	FilePath   string `json:"filePath"`
	DataStatus string `json:"dataStatus"`
}

func (p Package) Active() bool {
	return p.DataStatus == StatusCurrentlyIssued
}

// Catalog is the raw catalog document of a package.
type Catalog struct {
	Package Package
	Raw     json.RawMessage
}

// Reauthenticator starts a fresh login. *Authenticator implements it.
type Reauthenticator interface {
	Login(ctx context.Context) error
}

type FetcherOptions struct {
	// delay between the priming and the authoritative package list call,
	// defaults to 1 second
	PrimeDelay time.Duration
	// attempts CurrentCatalog makes in total, defaults to 2
	CatalogAttempts int
	Telemetry       telemetry.API
}

const (
	report_fetcher_list_packages   = "fetcher.list-packages"
	report_fetcher_fetch_catalog   = "fetcher.fetch-catalog"
	report_fetcher_current_catalog = "fetcher.current-catalog"
	report_fetcher_reauth          = "fetcher.reauth"
)

// Fetcher locates the active package and downloads its catalog. It calls
// the Reauthenticator whenever the portal reports the session has expired.
type Fetcher struct {
	session *Session
	auth    Reauthenticator
	opts    FetcherOptions
	tel     telemetry.API
	reauths metric.Int64Counter
}

func NewFetcher(session *Session, auth Reauthenticator, opts FetcherOptions) (*Fetcher, error) {
	if opts.PrimeDelay == 0 {
		opts.PrimeDelay = time.Second
	}
	if opts.CatalogAttempts < 1 {
		opts.CatalogAttempts = 2
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	reauths, err := meter.Int64Counter(
		"eaip_reauth_total",
		metric.WithDescription("Number of logins triggered by an expired session."),
	)
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		session: session,
		auth:    auth,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("fetcher", tel),
		reauths: reauths,
	}, nil
}

func (f *Fetcher) reauthenticate(ctx context.Context, reason string) error {
	f.reauths.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	f.tel.ReportWarning(report_fetcher_reauth, reason)
	trace.SpanFromContext(ctx).AddEvent("reauthenticate", trace.WithAttributes(
		attribute.String("reason", reason),
	))
	return f.auth.Login(ctx)
}

type packagePage struct {
	Data []Package `json:"data"`
}

func (f *Fetcher) postPackageList(ctx context.Context) ([]Package, error) {
	res, err := f.session.Request(ctx, http.MethodPost, path_packages, struct{}{})
	if err != nil {
		return nil, err
	}
	parsed, err := decodeReply[*packagePage](res)
	if err != nil {
		return nil, err
	}
	if parsed.expired() {
		return nil, ErrSessionExpired
	}
	if parsed.RetCode == codeFailure {
		return nil, protocolErrorf("package list: %s", parsed.RetMsg)
	}
	if parsed.Data == nil {
		return nil, protocolErrorf("package list: reply has no data")
	}
	return parsed.Data.Data, nil
}

// listPackagesOnce issues the priming call and, after PrimeDelay, the
// authoritative call. An expired priming reply triggers a login before the
// authoritative call.
func (f *Fetcher) listPackagesOnce(ctx context.Context) ([]Package, error) {
	_, err := f.postPackageList(ctx)
	if errors.Is(err, ErrSessionExpired) {
		err = f.reauthenticate(ctx, "package list priming call")
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	timer := time.NewTimer(f.opts.PrimeDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return f.postPackageList(ctx)
}

func (f *Fetcher) listPackages(ctx context.Context, budget *reauthBudget) ([]Package, error) {
	return retryAfterReauth(
		ctx,
		func(ctx context.Context) error {
			return f.reauthenticate(ctx, "package list authoritative call")
		},
		func(err error) bool {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				return false
			}
			if !errors.Is(err, ErrSessionExpired) && !errors.Is(err, ErrProtocol) {
				return false
			}
			return budget.take()
		},
		f.listPackagesOnce,
	)
}

// ListPackages returns the packages the portal lists. A failed or expired
// authoritative reply is retried once after a fresh login.
func (f *Fetcher) ListPackages(ctx context.Context) ([]Package, error) {
	ctx, span := tracer.Start(ctx, "fetcher:ListPackages")
	defer span.End()

	pkgs, err := f.listPackages(ctx, newReauthBudget(1))
	if err != nil {
		f.tel.ReportWarning(report_fetcher_list_packages, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("packages", len(pkgs)))
	return pkgs, nil
}

// SelectActivePackage returns the first package carrying the active status.
func SelectActivePackage(pkgs []Package) (Package, error) {
	for _, p := range pkgs {
		if p.Active() {
			return p, nil
		}
	}
	return Package{}, fmt.Errorf("%w: none of %d package(s) is %s", ErrNotFound, len(pkgs), StatusCurrentlyIssued)
}

var utf8Bom = []byte("\xef\xbb\xbf")

func catalogPath(pkg Package) string {
	return "/" + strings.Trim(pkg.FilePath, "/") + "/JsonPath/AIP.JSON"
}

func (f *Fetcher) fetchCatalogOnce(ctx context.Context, pkg Package) (json.RawMessage, error) {
	res, err := f.session.Request(ctx, http.MethodGet, catalogPath(pkg), nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		return nil, protocolErrorf("catalog %s: status %d", pkg.DataName, res.StatusCode())
	}

	body := bytes.TrimSpace(bytes.TrimPrefix(res.Body(), utf8Bom))
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: catalog %s is empty", ErrNotFound, pkg.DataName)
	}
	if !json.Valid(body) {
		return nil, protocolErrorf("catalog %s is not valid json", pkg.DataName)
	}
	if IsSessionExpired(body) {
		return nil, ErrSessionExpired
	}
	switch string(body) {
	case "null", "[]", "{}":
		return nil, fmt.Errorf("%w: catalog %s is empty", ErrNotFound, pkg.DataName)
	}

	out := make(json.RawMessage, len(body))
	copy(out, body)
	return out, nil
}

// FetchCatalog downloads `{filePath}/JsonPath/AIP.JSON` of pkg.
func (f *Fetcher) FetchCatalog(ctx context.Context, pkg Package) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "fetcher:FetchCatalog", trace.WithAttributes(
		attribute.String("package", pkg.DataName),
	))
	defer span.End()

	if strings.Trim(pkg.FilePath, "/") == "" {
		err := fmt.Errorf("%w: package %q has no file path", ErrNotFound, pkg.DataName)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	raw, err := ensureAuthenticated(
		ctx,
		func(ctx context.Context) error {
			return f.reauthenticate(ctx, "catalog fetch")
		},
		func(ctx context.Context) (json.RawMessage, error) {
			return f.fetchCatalogOnce(ctx, pkg)
		},
	)
	if err != nil {
		f.tel.ReportWarning(report_fetcher_fetch_catalog, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("bytes", len(raw)))
	return raw, nil
}

func (f *Fetcher) currentCatalogOnce(ctx context.Context, budget *reauthBudget) (Catalog, error) {
	pkgs, err := f.listPackages(ctx, budget)
	if err != nil {
		return Catalog{}, err
	}
	pkg, err := SelectActivePackage(pkgs)
	if err != nil {
		return Catalog{}, err
	}
	raw, err := f.FetchCatalog(ctx, pkg)
	if err != nil {
		return Catalog{}, err
	}
	return Catalog{Package: pkg, Raw: raw}, nil
}

// CurrentCatalog selects the active package and fetches its catalog. After
// a failure it logs in again and retries the whole sequence, up to
// CatalogAttempts attempts in total.
func (f *Fetcher) CurrentCatalog(ctx context.Context) (Catalog, error) {
	ctx, span := tracer.Start(ctx, "fetcher:CurrentCatalog")
	defer span.End()

	budget := newReauthBudget(1)

	var err error
	for attempt := 1; attempt <= f.opts.CatalogAttempts; attempt++ {
		if attempt > 1 {
			if ctx.Err() != nil {
				break
			}
			reauthErr := f.reauthenticate(ctx, fmt.Sprintf("catalog attempt %d", attempt))
			if reauthErr != nil {
				err = reauthErr
				break
			}
		}

		var catalog Catalog
		catalog, err = f.currentCatalogOnce(ctx, budget)
		if err == nil {
			span.SetAttributes(
				attribute.String("package", catalog.Package.DataName),
				attribute.Int("attempts", attempt),
			)
			return catalog, nil
		}
		f.tel.ReportWarning(report_fetcher_current_catalog, attempt, err)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return Catalog{}, err
}
