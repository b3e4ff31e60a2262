// Package app wires the helpdesk client together. An App is built once at
// start-up and handed to every command; nothing in the tree keeps
// package-level state.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/raphaelgruber/helpdesk-go/internal/auth"
	"github.com/raphaelgruber/helpdesk-go/internal/chat"
	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/raphaelgruber/helpdesk-go/internal/clock"
	"github.com/raphaelgruber/helpdesk-go/internal/config"
	"github.com/raphaelgruber/helpdesk-go/internal/dashboard"
	"github.com/raphaelgruber/helpdesk-go/internal/document"
	"github.com/raphaelgruber/helpdesk-go/internal/escalation"
	"github.com/raphaelgruber/helpdesk-go/internal/faq"
	"github.com/raphaelgruber/helpdesk-go/internal/metrics"
	"github.com/raphaelgruber/helpdesk-go/internal/store"
)

// App is the explicit context object for one client process.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Clock   clock.Clock
	Metrics *metrics.Collector
	Client  *client.Client
	Store   store.Store

	Auth        *auth.Service
	Chat        *chat.State
	Escalations *escalation.Workflow
	FAQs        *faq.Editor
	Documents   *document.Library
}

type options struct {
	store      store.Store
	clock      clock.Clock
	httpClient *http.Client
}

// Option customizes New.
type Option func(*options)

// WithStore replaces the configured session store.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithHTTPClient replaces the HTTP client used for the backend.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// New builds an App from cfg. The chat state is restored from the session
// store before New returns.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}

	if o.store == nil {
		s, err := openStore(cfg)
		if err != nil {
			return nil, err
		}
		o.store = s
	}

	collector := metrics.NewCollector()
	clientOpts := []client.Option{
		client.WithLogger(logger),
		client.WithMetrics(collector),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, client.WithHTTPClient(o.httpClient))
	}
	if cfg.ClientTimeout > 0 {
		clientOpts = append(clientOpts, client.WithTimeout(cfg.ClientTimeout))
	}
	c := client.New(cfg.APIURL, clientOpts...)

	a := &App{
		Config:      cfg,
		Logger:      logger,
		Clock:       o.clock,
		Metrics:     collector,
		Client:      c,
		Store:       o.store,
		Auth:        auth.NewService(c, o.store, logger),
		Chat:        chat.New(c, o.store, o.clock, logger),
		Escalations: escalation.New(c, o.clock, logger),
		FAQs:        faq.NewEditor(c, logger),
		Documents:   document.NewLibrary(c, cfg.UploadMaxBytes, logger),
	}
	a.Chat.Restore()

	logger.Debug("app initialized", "api_url", c.BaseURL(), "profile", cfg.Profile, "ephemeral", cfg.Ephemeral)
	return a, nil
}

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.Ephemeral {
		return store.NewMemory(), nil
	}
	s, err := store.OpenFile(cfg.SessionFile())
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return s, nil
}

// CurrentUser returns the signed-in user.
func (a *App) CurrentUser() (*client.User, error) {
	return a.Auth.Current()
}

// Logout clears the identity and the chat state.
func (a *App) Logout() error {
	a.Chat.Reset()
	return a.Auth.Logout()
}

// Dashboard loads the admin overview.
func (a *App) Dashboard(ctx context.Context) (dashboard.Stats, error) {
	return dashboard.Load(ctx, a.Client)
}
