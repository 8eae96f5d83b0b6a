// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/sms-bridge/lib/secret"
	"github.com/bureau-foundation/sms-bridge/lib/testutil"
	"github.com/bureau-foundation/sms-bridge/messaging"
)

const (
	testUserID      = "@bot:example.org"
	testAccessToken = "syt_test_token"
	testRoomAlias   = "#relay:example.org"
	testRoomID      = "!relay:example.org"
)

// sentMessage is one m.room.message PUT received by fakeHomeserver.
type sentMessage struct {
	RoomID  string
	Content messaging.MessageContent
}

// fakeHomeserver implements the client-server endpoints the bridge
// uses. The initial sync reports joined and invited; incremental syncs
// long-poll for up to a second and return nothing, unless syncStatus
// is set.
type fakeHomeserver struct {
	t      *testing.T
	server *httptest.Server

	mu           sync.Mutex
	joined       []string
	invited      []string
	aliases      map[string]string
	loginStatus  int
	whoami       string
	initialGate  chan struct{}
	syncStatus   int
	sendStatus   int
	listStatus   int
	logins       int
	syncRequests int
	listRequests int
	joins        []string
	sent         []sentMessage
	loggedOut    bool
}

func newFakeHomeserver(t *testing.T) *fakeHomeserver {
	t.Helper()
	homeserver := &fakeHomeserver{
		t:       t,
		joined:  []string{testRoomID},
		aliases: map[string]string{testRoomAlias: testRoomID},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /_matrix/client/v3/login", homeserver.handleLogin)
	mux.HandleFunc("GET /_matrix/client/v3/sync", homeserver.authenticated(homeserver.handleSync))
	mux.HandleFunc("GET /_matrix/client/v3/directory/room/{alias}", homeserver.authenticated(homeserver.handleResolve))
	mux.HandleFunc("PUT /_matrix/client/v3/rooms/{room}/send/{type}/{txn}", homeserver.authenticated(homeserver.handleSend))
	mux.HandleFunc("POST /_matrix/client/v3/join/{room}", homeserver.authenticated(homeserver.handleJoin))
	mux.HandleFunc("POST /_matrix/client/v3/logout", homeserver.authenticated(homeserver.handleLogout))
	mux.HandleFunc("GET /_matrix/client/v3/account/whoami", homeserver.authenticated(homeserver.handleWhoAmI))
	mux.HandleFunc("GET /_matrix/client/v3/joined_rooms", homeserver.authenticated(homeserver.handleJoinedRooms))

	homeserver.server = httptest.NewServer(mux)
	t.Cleanup(homeserver.server.Close)
	return homeserver
}

func (h *fakeHomeserver) URL() string { return h.server.URL }

func (h *fakeHomeserver) writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		h.t.Errorf("encoding response: %v", err)
	}
}

func (h *fakeHomeserver) writeError(w http.ResponseWriter, status int, code string) {
	h.writeJSON(w, status, map[string]string{"errcode": code, "error": "fake homeserver error"})
}

func (h *fakeHomeserver) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testAccessToken {
			h.writeError(w, http.StatusUnauthorized, "M_MISSING_TOKEN")
			return
		}
		next(w, r)
	}
}

func (h *fakeHomeserver) handleLogin(w http.ResponseWriter, r *http.Request) {
	var request messaging.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.t.Errorf("decoding login request: %v", err)
	}

	h.mu.Lock()
	h.logins++
	status := h.loginStatus
	h.mu.Unlock()

	if status != 0 {
		h.writeError(w, status, "M_FORBIDDEN")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"user_id":      testUserID,
		"access_token": testAccessToken,
		"device_id":    "FAKEDEVICE",
	})
}

func (h *fakeHomeserver) handleSync(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.syncRequests++
	status := h.syncStatus
	joined := append([]string(nil), h.joined...)
	invited := append([]string(nil), h.invited...)
	gate := h.initialGate
	h.mu.Unlock()

	since := r.URL.Query().Get("since")
	if since == "" {
		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		join := map[string]any{}
		for _, roomID := range joined {
			join[roomID] = map[string]any{}
		}
		invite := map[string]any{}
		for _, roomID := range invited {
			invite[roomID] = map[string]any{}
		}
		h.writeJSON(w, http.StatusOK, map[string]any{
			"next_batch": "batch_1",
			"rooms":      map[string]any{"join": join, "invite": invite},
		})
		return
	}

	if status != 0 {
		h.writeError(w, status, "M_UNKNOWN_TOKEN")
		return
	}

	select {
	case <-r.Context().Done():
		return
	case <-time.After(time.Second):
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"next_batch": since})
}

func (h *fakeHomeserver) handleResolve(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	roomID, ok := h.aliases[r.PathValue("alias")]
	h.mu.Unlock()

	if !ok {
		h.writeError(w, http.StatusNotFound, "M_NOT_FOUND")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"room_id": roomID, "servers": []string{"example.org"}})
}

func (h *fakeHomeserver) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("type") != "m.room.message" {
		h.t.Errorf("event type = %q, want m.room.message", r.PathValue("type"))
	}
	var content messaging.MessageContent
	if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
		h.t.Errorf("decoding send body: %v", err)
	}

	h.mu.Lock()
	status := h.sendStatus
	if status == 0 {
		h.sent = append(h.sent, sentMessage{RoomID: r.PathValue("room"), Content: content})
	}
	h.mu.Unlock()

	if status != 0 {
		h.writeError(w, status, "M_FORBIDDEN")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"event_id": testutil.UniqueID("$event")})
}

func (h *fakeHomeserver) handleJoin(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	h.mu.Lock()
	h.joins = append(h.joins, roomID)
	h.mu.Unlock()
	h.writeJSON(w, http.StatusOK, map[string]string{"room_id": roomID})
}

func (h *fakeHomeserver) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	userID := h.whoami
	h.mu.Unlock()
	if userID == "" {
		userID = testUserID
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

func (h *fakeHomeserver) handleJoinedRooms(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.listRequests++
	status := h.listStatus
	joined := append([]string{}, h.joined...)
	h.mu.Unlock()

	if status != 0 {
		h.writeError(w, status, "M_UNKNOWN")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"joined_rooms": joined})
}

func (h *fakeHomeserver) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.loggedOut = true
	h.mu.Unlock()
	h.writeJSON(w, http.StatusOK, map[string]any{})
}

func (h *fakeHomeserver) set(update func(h *fakeHomeserver)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	update(h)
}

func (h *fakeHomeserver) sentMessages() []sentMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]sentMessage(nil), h.sent...)
}

func (h *fakeHomeserver) syncRequestCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.syncRequests
}

func (h *fakeHomeserver) joinedRoomsRequestCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listRequests
}

func (h *fakeHomeserver) loginCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.logins
}

func (h *fakeHomeserver) joinedViaInvite() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.joins...)
}

func (h *fakeHomeserver) didLogout() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loggedOut
}

func mustPassword(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	password, err := secret.NewFromString(value)
	if err != nil {
		t.Fatalf("NewFromString: %v", err)
	}
	t.Cleanup(func() { password.Close() })
	return password
}
