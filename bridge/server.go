// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bureau-foundation/sms-bridge/lib/secret"
	"github.com/bureau-foundation/sms-bridge/lib/service"
)

// maxWebhookBodySize bounds a webhook form. Twilio's inbound SMS
// payloads are a few kilobytes even for concatenated messages.
const maxWebhookBodySize = 64 * 1024

// Routes served by the ingestion handler.
const (
	PathStartup       = "/health/startup"
	PathLiveness      = "/health/liveness"
	PathReadiness     = "/health/readiness"
	PathTwilioMessage = "/twilio/messages"
	PathMetrics       = "/metrics"
)

// ReadinessChecker reports whether messages can currently be delivered.
type ReadinessChecker interface {
	IsReady() bool
}

// MessageDeliverer posts an inbound message to the room named by alias.
// *Deliverer implements it.
type MessageDeliverer interface {
	Deliver(ctx context.Context, alias string, message InboundMessage) error
}

// HandlerConfig configures NewHandler.
type HandlerConfig struct {
	// Readiness gates the readiness probe and message delivery.
	// Required.
	Readiness ReadinessChecker

	// Deliverer posts decoded messages. Required.
	Deliverer MessageDeliverer

	// RoomAlias is the alias every message is delivered to. Passed to
	// the deliverer unparsed.
	RoomAlias string

	// AuthToken enables X-Twilio-Signature verification when non-nil.
	AuthToken *secret.Buffer

	// WebhookURL is the public URL Twilio posts to. Required with
	// AuthToken: the signature covers the URL Twilio used, which a
	// server behind a proxy cannot reconstruct.
	WebhookURL string

	// Metrics records webhook and delivery counts and serves /metrics.
	// Required.
	Metrics *Metrics

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// webhookHandler serves POST /twilio/messages.
type webhookHandler struct {
	readiness  ReadinessChecker
	deliverer  MessageDeliverer
	roomAlias  string
	authToken  *secret.Buffer
	webhookURL string
	metrics    *Metrics
	logger     *slog.Logger
}

// NewHandler builds the ingestion server's router. Panics on missing
// required configuration.
func NewHandler(config HandlerConfig) http.Handler {
	if config.Readiness == nil {
		panic("bridge.NewHandler: Readiness is required")
	}
	if config.Deliverer == nil {
		panic("bridge.NewHandler: Deliverer is required")
	}
	if config.Metrics == nil {
		panic("bridge.NewHandler: Metrics is required")
	}
	if config.Logger == nil {
		panic("bridge.NewHandler: Logger is required")
	}
	if config.AuthToken != nil && config.WebhookURL == "" {
		panic("bridge.NewHandler: WebhookURL is required when AuthToken is set")
	}

	webhook := &webhookHandler{
		readiness:  config.Readiness,
		deliverer:  config.Deliverer,
		roomAlias:  config.RoomAlias,
		authToken:  config.AuthToken,
		webhookURL: config.WebhookURL,
		metrics:    config.Metrics,
		logger:     config.Logger,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(config.Logger))
	router.Use(middleware.Recoverer)

	// Startup and liveness only prove the listener is up. Readiness
	// follows the session so a load balancer stops routing webhooks
	// while the bridge cannot deliver them.
	router.Get(PathStartup, probeOK)
	router.Get(PathLiveness, probeOK)
	router.Get(PathReadiness, func(writer http.ResponseWriter, request *http.Request) {
		if !config.Readiness.IsReady() {
			http.Error(writer, "", http.StatusServiceUnavailable)
			return
		}
		writer.WriteHeader(http.StatusOK)
	})

	router.Post(PathTwilioMessage, webhook.ServeHTTP)
	router.Method(http.MethodGet, PathMetrics, config.Metrics.Handler())

	return router
}

func probeOK(writer http.ResponseWriter, _ *http.Request) {
	writer.WriteHeader(http.StatusOK)
}

// ServeHTTP handles one inbound-SMS webhook. Status codes tell Twilio
// whether to retry: 400 and 403 will never succeed, 503 and 500 may.
func (h *webhookHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	request.Body = http.MaxBytesReader(writer, request.Body, maxWebhookBodySize)
	if err := request.ParseForm(); err != nil {
		h.logger.Warn("webhook: unreadable form",
			"error", err,
			"remote_addr", request.RemoteAddr,
		)
		status := http.StatusBadRequest
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(writer, "", status)
		return
	}

	if h.authToken != nil {
		signature := request.Header.Get(service.TwilioSignatureHeader)
		if err := service.VerifyTwilioSignature(h.authToken.Bytes(), h.webhookURL, request.PostForm, signature); err != nil {
			h.logger.Warn("webhook: signature verification failed",
				"error", err,
				"remote_addr", request.RemoteAddr,
			)
			http.Error(writer, "", http.StatusForbidden)
			return
		}
	}

	message, err := DecodeInboundMessage(request.PostForm)
	if err != nil {
		h.logger.Warn("webhook: rejecting malformed message",
			"error", err,
			"remote_addr", request.RemoteAddr,
		)
		http.Error(writer, "", http.StatusBadRequest)
		return
	}
	h.metrics.recordInbound()

	h.logger.Info("sms received",
		"from", message.From,
		"to", message.To,
		"body", message.Body,
		"room_alias", h.roomAlias,
		"request_id", middleware.GetReqID(request.Context()),
	)

	if !h.readiness.IsReady() {
		h.logger.Warn("webhook: matrix session not ready, asking twilio to retry",
			"from", message.From,
		)
		http.Error(writer, "", http.StatusServiceUnavailable)
		return
	}

	err = h.deliverer.Deliver(request.Context(), h.roomAlias, message)
	h.metrics.recordDelivery(err)
	if err != nil {
		h.logger.Error("webhook: delivery failed",
			"from", message.From,
			"to", message.To,
			"room_alias", h.roomAlias,
			"error", err,
		)
		http.Error(writer, "", http.StatusInternalServerError)
		return
	}

	writer.WriteHeader(http.StatusOK)
}

// requestLogger logs each request at debug level once it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			wrapped := middleware.NewWrapResponseWriter(writer, request.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("http request",
					"method", request.Method,
					"path", request.URL.Path,
					"status", wrapped.Status(),
					"bytes", wrapped.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(request.Context()),
				)
			}()
			next.ServeHTTP(wrapped, request)
		})
	}
}
