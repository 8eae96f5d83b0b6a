// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/bureau-foundation/sms-bridge/lib/testutil"
)

func TestHTTPServerLifecycle(t *testing.T) {
	handler := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)
		fmt.Fprintf(writer, "ok")
	})

	server := NewHTTPServer(HTTPServerConfig{
		Address:         "127.0.0.1:0",
		Handler:         handler,
		ShutdownTimeout: 2 * time.Second,
		Logger:          testutil.Logger(t),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()

	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server ready")

	response, err := http.Get("http://" + server.Addr().String() + "/health/liveness")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", response.StatusCode)
	}
	responseBody, _ := io.ReadAll(response.Body)
	if string(responseBody) != "ok" {
		t.Errorf("body = %q, want %q", responseBody, "ok")
	}

	cancel()

	if err := testutil.RequireReceive(t, serveDone, 5*time.Second, "server shutdown"); err != nil {
		t.Errorf("Serve() = %v, want nil", err)
	}
}

func TestHTTPServerListenError(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer occupied.Close()

	server := NewHTTPServer(HTTPServerConfig{
		Address: occupied.Addr().String(),
		Handler: http.NotFoundHandler(),
		Logger:  testutil.Logger(t),
	})

	if err := server.Serve(context.Background()); err == nil {
		t.Fatal("Serve() on an occupied port succeeded")
	}
	select {
	case <-server.Ready():
		t.Error("Ready() closed although the listener was never bound")
	default:
	}
}

func TestHTTPServerPanicsOnMissingConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	tests := []struct {
		name   string
		config HTTPServerConfig
	}{
		{name: "missing_address", config: HTTPServerConfig{Handler: handler, Logger: logger}},
		{name: "missing_handler", config: HTTPServerConfig{Address: ":0", Logger: logger}},
		{name: "missing_logger", config: HTTPServerConfig{Address: ":0", Handler: handler}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("NewHTTPServer did not panic")
				}
			}()
			NewHTTPServer(test.config)
		})
	}
}
