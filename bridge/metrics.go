// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "sms_bridge"

// Delivery results recorded in the deliveries counter. Failures use
// FailureKind.String().
const deliveryResultOK = "ok"

// Metrics holds the bridge's Prometheus collectors on a private
// registry, so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	inboundMessages prometheus.Counter
	deliveries      *prometheus.CounterVec
	syncFailures    prometheus.Counter
}

// NewMetrics registers the bridge collectors. ready backs the
// session_ready gauge and is evaluated at scrape time.
func NewMetrics(ready func() bool) *Metrics {
	metrics := &Metrics{
		registry: prometheus.NewRegistry(),
		inboundMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "inbound_messages_total",
			Help:      "Twilio webhooks that decoded into an inbound message.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_total",
			Help:      "Delivery attempts by result.",
		}, []string{"result"}),
		syncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sync_failures_total",
			Help:      "Failed Matrix /sync attempts.",
		}),
	}

	sessionReady := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "session_ready",
		Help:      "1 while the Matrix session is syncing, 0 otherwise.",
	}, func() float64 {
		if ready() {
			return 1
		}
		return 0
	})

	// Pre-create every result so rates work from the first scrape.
	for _, result := range []string{
		deliveryResultOK,
		FailureAliasParse.String(),
		FailureAliasResolution.String(),
		FailureRoomNotFound.String(),
		FailureSend.String(),
	} {
		metrics.deliveries.WithLabelValues(result)
	}

	metrics.registry.MustRegister(
		metrics.inboundMessages,
		metrics.deliveries,
		metrics.syncFailures,
		sessionReady,
		collectors.NewGoCollector(),
	)
	return metrics
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) recordInbound() { m.inboundMessages.Inc() }

func (m *Metrics) recordDelivery(err error) {
	if err == nil {
		m.deliveries.WithLabelValues(deliveryResultOK).Inc()
		return
	}
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		m.deliveries.WithLabelValues(deliveryErr.Kind.String()).Inc()
	}
}

// RecordSyncFailure counts one failed sync attempt. Suitable as
// SessionConfig.OnSyncFailure.
func (m *Metrics) RecordSyncFailure(error) { m.syncFailures.Inc() }
