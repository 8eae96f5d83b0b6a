// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/sms-bridge/lib/secret"
	"github.com/bureau-foundation/sms-bridge/lib/service"
	"github.com/bureau-foundation/sms-bridge/lib/testutil"
)

type toggleReadiness struct {
	ready atomic.Bool
}

func (r *toggleReadiness) IsReady() bool { return r.ready.Load() }

type deliverCall struct {
	alias   string
	message InboundMessage
}

type stubDeliverer struct {
	mu    sync.Mutex
	err   error
	calls []deliverCall
}

func (d *stubDeliverer) Deliver(_ context.Context, alias string, message InboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, deliverCall{alias: alias, message: message})
	return d.err
}

func (d *stubDeliverer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type handlerFixture struct {
	handler   http.Handler
	readiness *toggleReadiness
	deliverer *stubDeliverer
	metrics   *Metrics
}

func newHandlerFixture(t *testing.T, authToken *secret.Buffer, webhookURL string) *handlerFixture {
	t.Helper()
	fixture := &handlerFixture{
		readiness: &toggleReadiness{},
		deliverer: &stubDeliverer{},
	}
	fixture.readiness.ready.Store(true)
	fixture.metrics = NewMetrics(fixture.readiness.IsReady)
	fixture.handler = NewHandler(HandlerConfig{
		Readiness:  fixture.readiness,
		Deliverer:  fixture.deliverer,
		RoomAlias:  testRoomAlias,
		AuthToken:  authToken,
		WebhookURL: webhookURL,
		Metrics:    fixture.metrics,
		Logger:     testutil.Logger(t),
	})
	return fixture
}

func (f *handlerFixture) do(method, path string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, path, body)
	for key, values := range header {
		request.Header[key] = values
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func (f *handlerFixture) postForm(form url.Values, header http.Header) *httptest.ResponseRecorder {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(http.MethodPost, PathTwilioMessage, strings.NewReader(form.Encode()), header)
}

func validForm() url.Values {
	return url.Values{
		"From":       {"+15551234567"},
		"To":         {"+15559876543"},
		"Body":       {"hello"},
		"MessageSid": {"SM0123456789"},
	}
}

func TestHealthProbes(t *testing.T) {
	fixture := newHandlerFixture(t, nil, "")
	fixture.readiness.ready.Store(false)

	for _, path := range []string{PathStartup, PathLiveness} {
		if code := fixture.do(http.MethodGet, path, nil, nil).Code; code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, code)
		}
	}
	if code := fixture.do(http.MethodGet, PathReadiness, nil, nil).Code; code != http.StatusServiceUnavailable {
		t.Errorf("readiness while not ready = %d, want 503", code)
	}

	fixture.readiness.ready.Store(true)
	if code := fixture.do(http.MethodGet, PathReadiness, nil, nil).Code; code != http.StatusOK {
		t.Errorf("readiness while ready = %d, want 200", code)
	}

	fixture.readiness.ready.Store(false)
	if code := fixture.do(http.MethodGet, PathReadiness, nil, nil).Code; code != http.StatusServiceUnavailable {
		t.Errorf("readiness after session ended = %d, want 503", code)
	}
}

func TestTwilioMessageDelivered(t *testing.T) {
	fixture := newHandlerFixture(t, nil, "")

	response := fixture.postForm(validForm(), nil)
	if response.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", response.Code)
	}
	if fixture.deliverer.callCount() != 1 {
		t.Fatalf("Deliver called %d times, want 1", fixture.deliverer.callCount())
	}
	call := fixture.deliverer.calls[0]
	if call.alias != testRoomAlias {
		t.Errorf("alias = %q, want %q", call.alias, testRoomAlias)
	}
	want := InboundMessage{From: "+15551234567", To: "+15559876543", Body: "hello"}
	if call.message != want {
		t.Errorf("message = %+v, want %+v", call.message, want)
	}

	if got := promtestutil.ToFloat64(fixture.metrics.inboundMessages); got != 1 {
		t.Errorf("inbound_messages_total = %v, want 1", got)
	}
	if got := promtestutil.ToFloat64(fixture.metrics.deliveries.WithLabelValues(deliveryResultOK)); got != 1 {
		t.Errorf("deliveries_total{result=ok} = %v, want 1", got)
	}
}

func TestTwilioMessageEmptyBodyAccepted(t *testing.T) {
	fixture := newHandlerFixture(t, nil, "")
	form := validForm()
	form.Set("Body", "")

	if code := fixture.postForm(form, nil).Code; code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body := fixture.deliverer.calls[0].message.Body; body != "" {
		t.Errorf("Body = %q, want empty", body)
	}
}

func TestTwilioMessageMissingField(t *testing.T) {
	for _, field := range []string{"From", "To", "Body"} {
		t.Run(field, func(t *testing.T) {
			fixture := newHandlerFixture(t, nil, "")
			form := validForm()
			form.Del(field)

			if code := fixture.postForm(form, nil).Code; code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", code)
			}
			if count := fixture.deliverer.callCount(); count != 0 {
				t.Errorf("Deliver called %d times, want 0", count)
			}
			if got := promtestutil.ToFloat64(fixture.metrics.inboundMessages); got != 0 {
				t.Errorf("inbound_messages_total = %v, want 0", got)
			}
		})
	}
}

func TestTwilioMessageSessionNotReady(t *testing.T) {
	fixture := newHandlerFixture(t, nil, "")
	fixture.readiness.ready.Store(false)

	if code := fixture.postForm(validForm(), nil).Code; code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	if count := fixture.deliverer.callCount(); count != 0 {
		t.Errorf("Deliver called %d times, want 0", count)
	}
}

func TestTwilioMessageDeliveryFailure(t *testing.T) {
	for _, kind := range []FailureKind{FailureAliasParse, FailureAliasResolution, FailureRoomNotFound, FailureSend} {
		t.Run(kind.String(), func(t *testing.T) {
			fixture := newHandlerFixture(t, nil, "")
			fixture.deliverer.err = &DeliveryError{Kind: kind, Alias: testRoomAlias, Err: errors.New("boom")}

			if code := fixture.postForm(validForm(), nil).Code; code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", code)
			}
			if got := promtestutil.ToFloat64(fixture.metrics.deliveries.WithLabelValues(kind.String())); got != 1 {
				t.Errorf("deliveries_total{result=%s} = %v, want 1", kind, got)
			}
			if got := promtestutil.ToFloat64(fixture.metrics.deliveries.WithLabelValues(deliveryResultOK)); got != 0 {
				t.Errorf("deliveries_total{result=ok} = %v, want 0", got)
			}
		})
	}
}

func TestTwilioMessageSignature(t *testing.T) {
	const webhookURL = "https://bridge.example.org/twilio/messages"
	token := mustPassword(t, "twilio-auth-token")
	form := validForm()
	valid := service.TwilioSignature(token.Bytes(), webhookURL, form)

	tests := []struct {
		name      string
		signature string
		want      int
	}{
		{name: "valid", signature: valid, want: http.StatusOK},
		{name: "missing", signature: "", want: http.StatusForbidden},
		{name: "wrong", signature: service.TwilioSignature([]byte("other"), webhookURL, form), want: http.StatusForbidden},
		{name: "other url", signature: service.TwilioSignature(token.Bytes(), "https://elsewhere/", form), want: http.StatusForbidden},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fixture := newHandlerFixture(t, token, webhookURL)
			header := http.Header{}
			if test.signature != "" {
				header.Set(service.TwilioSignatureHeader, test.signature)
			}
			if code := fixture.postForm(form, header).Code; code != test.want {
				t.Errorf("status = %d, want %d", code, test.want)
			}
			wantCalls := 0
			if test.want == http.StatusOK {
				wantCalls = 1
			}
			if count := fixture.deliverer.callCount(); count != wantCalls {
				t.Errorf("Deliver called %d times, want %d", count, wantCalls)
			}
		})
	}
}

func TestTwilioMessageBodyTooLarge(t *testing.T) {
	fixture := newHandlerFixture(t, nil, "")
	form := validForm()
	form.Set("Body", strings.Repeat("x", maxWebhookBodySize))

	if code := fixture.postForm(form, nil).Code; code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", code)
	}
	if count := fixture.deliverer.callCount(); count != 0 {
		t.Errorf("Deliver called %d times, want 0", count)
	}
}

func TestTwilioMessageMethodNotAllowed(t *testing.T) {
	fixture := newHandlerFixture(t, nil, "")
	if code := fixture.do(http.MethodGet, PathTwilioMessage, nil, nil).Code; code != http.StatusMethodNotAllowed {
		t.Errorf("GET %s = %d, want 405", PathTwilioMessage, code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	fixture := newHandlerFixture(t, nil, "")

	response := fixture.do(http.MethodGet, PathMetrics, nil, nil)
	if response.Code != http.StatusOK {
		t.Fatalf("GET %s = %d, want 200", PathMetrics, response.Code)
	}
	body := response.Body.String()
	for _, name := range []string{
		"sms_bridge_session_ready 1",
		`sms_bridge_deliveries_total{result="send"} 0`,
		"sms_bridge_inbound_messages_total 0",
		"sms_bridge_sync_failures_total 0",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}

func TestNewHandlerRequiresWebhookURLWithToken(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewHandler did not panic without WebhookURL")
		}
	}()
	newHandlerFixture(t, mustPassword(t, "token"), "")
}
