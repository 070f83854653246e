package eaip

import (
	"context"
	"encoding/json"
	"net/http"

	"eaipviewer/internal/components/telemetry"

	"go.opentelemetry.io/otel/codes"
)

type Options struct {
	Session     SessionOptions
	Credentials Credentials
	Solver      CaptchaSolver
	// defaults to an RSAEncryptor holding DefaultPublicKey
	Encryptor Encryptor
	Fetcher   FetcherOptions
	Telemetry telemetry.API
}

const (
	report_client_publications   = "client.publications"
	report_client_validate_admin = "client.validate-admin"
)

// Client bundles one Session with the components that drive it.
type Client struct {
	Session *Session
	Auth    *Authenticator
	Fetcher *Fetcher
	tel     telemetry.API
}

func NewClient(opts Options) (*Client, error) {
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	if opts.Session.Telemetry == nil {
		opts.Session.Telemetry = tel
	}
	if opts.Fetcher.Telemetry == nil {
		opts.Fetcher.Telemetry = tel
	}

	session, err := NewSession(opts.Session)
	if err != nil {
		return nil, err
	}
	auth, err := NewAuthenticator(session, AuthOptions{
		Credentials: opts.Credentials,
		Solver:      opts.Solver,
		Encryptor:   opts.Encryptor,
		Telemetry:   tel,
	})
	if err != nil {
		return nil, err
	}
	fetcher, err := NewFetcher(session, auth, opts.Fetcher)
	if err != nil {
		return nil, err
	}
	return &Client{
		Session: session,
		Auth:    auth,
		Fetcher: fetcher,
		tel:     telemetry.NewScopedAPI("client", tel),
	}, nil
}

func (c *Client) Login(ctx context.Context) error {
	return c.Auth.Login(ctx)
}

func (c *Client) CurrentCatalog(ctx context.Context) (Catalog, error) {
	return c.Fetcher.CurrentCatalog(ctx)
}

func (c *Client) reauth(ctx context.Context) error {
	return c.Fetcher.reauthenticate(ctx, "client call")
}

// Publications returns the data of the login page publication list.
func (c *Client) Publications(ctx context.Context) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "client:Publications")
	defer span.End()

	out, err := ensureAuthenticated(ctx, c.reauth, func(ctx context.Context) (json.RawMessage, error) {
		return requestPublications(ctx, c.Session)
	})
	if err != nil {
		c.tel.ReportWarning(report_client_publications, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

// AdminCheck is the portal's answer to whether the current account is an
// administrator.
type AdminCheck struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (c *Client) ValidateAdmin(ctx context.Context) (AdminCheck, error) {
	ctx, span := tracer.Start(ctx, "client:ValidateAdmin")
	defer span.End()

	out, err := ensureAuthenticated(ctx, c.reauth, func(ctx context.Context) (AdminCheck, error) {
		res, err := c.Session.Request(ctx, http.MethodPost, path_admin, nil)
		if err != nil {
			return AdminCheck{}, err
		}
		parsed, err := decodeReply[json.RawMessage](res)
		if err != nil {
			return AdminCheck{}, err
		}
		if parsed.expired() {
			return AdminCheck{}, ErrSessionExpired
		}
		return AdminCheck{
			Code:    int(parsed.RetCode),
			Message: parsed.RetMsg,
			Data:    parsed.Data,
		}, nil
	})
	if err != nil {
		c.tel.ReportWarning(report_client_validate_admin, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AdminCheck{}, err
	}
	return out, nil
}
