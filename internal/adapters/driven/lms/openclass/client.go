// Package openclass implements the LMS provider port against the
// OpenClass classroom API.
//
// The API has two quirks the rest of the system never sees: bearer
// tokens travel in a literal "bearer" header rather than Authorization,
// and data endpoints wrap their JSON payloads in a JSON-encoded string
// (see types.go). Both are contained here.
package openclass

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driven"
	"github.com/cohort-tools/cohort-tracker/internal/logger"
)

// Ensure Provider implements the interface.
var _ driven.Provider = (*Provider)(nil)

// Default configuration values. Origin and app ID default to the values
// the classroom frontend pins; the API rejects requests carrying neither.
const (
	DefaultBaseURL  = "https://api.openclass.ai"
	DefaultOrigin   = "https://classroom.code-you.org"
	DefaultAppID    = "38e8433f3fd003aa0f650125e9ff1e9427d476796e37803cea9942ff7cc31cd0"
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = 30
)

// Config holds configuration for the OpenClass provider.
type Config struct {
	// Email and Password are the mentor account credentials (required).
	Email    string
	Password string

	// BaseURL is the API base URL (default: https://api.openclass.ai).
	BaseURL string

	// AppID is sent as the X-OpenClass-App-Id header on every request.
	// Empty uses the classroom frontend's pinned value.
	AppID string

	// Origin is sent as the Origin header; the API rejects requests
	// without a known origin. Empty uses the classroom frontend's.
	Origin string

	// PageSize is the requested records per progress page (default: 30).
	PageSize int

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration
}

// Provider fetches classes and progress records from OpenClass.
type Provider struct {
	client   *http.Client
	baseURL  string
	email    string
	password string
	appID    string
	origin   string
	pageSize int
}

// New creates an OpenClass provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("openclass: email and password are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AppID == "" {
		cfg.AppID = DefaultAppID
	}
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Provider{
		client:   &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		email:    cfg.Email,
		password: cfg.Password,
		appID:    cfg.AppID,
		origin:   cfg.Origin,
		pageSize: cfg.PageSize,
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "openclass" }

// Authenticate performs the email/password login exchange and returns a
// bearer session. It never retries; retry policy belongs to the caller.
func (p *Provider) Authenticate(ctx context.Context) (domain.Session, error) {
	form := url.Values{}
	form.Set("email", p.email)
	form.Set("password", p.password)
	// The login form always submits these, even empty.
	form.Set("invite_code", "")
	form.Set("instructor_invite_code", "")
	form.Set("mentor_invite_code", "")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Session{}, fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	p.setCommonHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.Session{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Session{}, fmt.Errorf("reading login response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		logger.Debug("login rejected: %s", truncate(body))
		return domain.Session{}, domain.ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		return domain.Session{}, fmt.Errorf("login failed: status %d: %s", resp.StatusCode, truncate(body))
	}

	token, err := decodeLoginToken(body)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	logger.Info("Authenticated with OpenClass")
	return domain.Session{Token: token}, nil
}

// setCommonHeaders applies the headers the API expects on every call.
func (p *Provider) setCommonHeaders(req *http.Request) {
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", p.origin)
	req.Header.Set("X-OpenClass-App-Id", p.appID)
}

// setSessionHeaders applies the bearer token and JSON content type used
// by the authenticated data endpoints.
func (p *Provider) setSessionHeaders(req *http.Request, session domain.Session) {
	// Not a typo: the API reads the token from a header named "bearer".
	req.Header.Set("bearer", session.Token)
	req.Header.Set("Content-Type", "application/json; charset=ISO-8859-1")
	p.setCommonHeaders(req)
}

// truncate caps raw response bodies quoted in errors and logs.
func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
