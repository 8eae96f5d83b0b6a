// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/bureau-foundation/sms-bridge/lib/clock"
	"github.com/bureau-foundation/sms-bridge/lib/config"
	"github.com/bureau-foundation/sms-bridge/lib/service"
)

// Task names reported in *TaskExitError.
const (
	TaskSession = "session"
	TaskHTTP    = "http"
)

// Options supplies the process-level dependencies of a Bridge.
type Options struct {
	// HTTPClient is used for all homeserver traffic. Defaults to a
	// client with no overall timeout: /sync long-polls are bounded by
	// the sync timeout and request contexts instead.
	HTTPClient *http.Client

	// Clock drives sync backoff. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// Bridge is one running SMS-to-Matrix relay: a session and an ingestion
// server sharing a lifetime.
type Bridge struct {
	session *SessionManager
	metrics *Metrics
	server  *service.HTTPServer
	logger  *slog.Logger
}

// New assembles a Bridge from loaded configuration. Nothing touches the
// network until Run.
func New(cfg *config.Config, options Options) (*Bridge, error) {
	if cfg == nil {
		return nil, errors.New("bridge: config is required")
	}
	if options.Logger == nil {
		return nil, errors.New("bridge: logger is required")
	}
	if options.HTTPClient == nil {
		options.HTTPClient = &http.Client{}
	}

	logger := options.Logger
	tuning := cfg.Tuning

	bridge := &Bridge{logger: logger}
	bridge.metrics = NewMetrics(func() bool { return bridge.session.IsReady() })

	bridge.session = NewSessionManager(SessionConfig{
		UserID:        cfg.Matrix.UserID,
		Password:      cfg.Matrix.Password,
		HomeserverURL: cfg.Matrix.HomeserverURL,
		HTTPClient:    options.HTTPClient,
		Sync: service.SyncConfig{
			Timeout:                tuning.Sync.Timeout,
			MaxBackoff:             tuning.Sync.MaxBackoff,
			MaxConsecutiveFailures: tuning.Sync.MaxConsecutiveFailures,
		},
		AcceptInvites: tuning.AcceptInvites,
		LogoutTimeout: tuning.ShutdownTimeout,
		OnSyncFailure: bridge.metrics.RecordSyncFailure,
		Clock:         options.Clock,
		Logger:        logger.With("component", "session"),
	})

	handler := NewHandler(HandlerConfig{
		Readiness:  bridge.session,
		Deliverer:  NewDeliverer(bridge.session, logger.With("component", "delivery")),
		RoomAlias:  cfg.Matrix.RoomAlias,
		AuthToken:  cfg.Twilio.AuthToken,
		WebhookURL: tuning.WebhookURL,
		Metrics:    bridge.metrics,
		Logger:     logger.With("component", "webhook"),
	})

	bridge.server = service.NewHTTPServer(service.HTTPServerConfig{
		Address:         tuning.ListenAddress,
		Handler:         handler,
		ShutdownTimeout: tuning.ShutdownTimeout,
		Logger:          logger.With("component", "http"),
	})

	return bridge, nil
}

// Session returns the bridge's session manager.
func (b *Bridge) Session() *SessionManager { return b.session }

// Metrics returns the bridge's metrics.
func (b *Bridge) Metrics() *Metrics { return b.metrics }

// ServerReady is closed once the ingestion server is listening.
func (b *Bridge) ServerReady() <-chan struct{} { return b.server.Ready() }

// ServerAddr is the bound listen address. Valid after ServerReady.
func (b *Bridge) ServerAddr() net.Addr { return b.server.Addr() }

// Run serves until ctx is cancelled or either task exits. The session
// task authenticates and then syncs; the http task serves webhooks from
// the start, answering 503 until the session is ready. Returns nil on
// cancellation, otherwise a *TaskExitError. The session is logged out
// before Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.session.Close()

	return Supervise(ctx, b.logger,
		Task{Name: TaskSession, Run: func(ctx context.Context) error {
			if err := b.session.Authenticate(ctx); err != nil {
				return err
			}
			b.logger.Info("authenticated to matrix", "user_id", b.session.config.UserID)
			return b.session.RunSync(ctx)
		}},
		Task{Name: TaskHTTP, Run: b.server.Serve},
	)
}
