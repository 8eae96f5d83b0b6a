// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/sms-bridge/lib/clock"
	"github.com/bureau-foundation/sms-bridge/lib/ref"
	"github.com/bureau-foundation/sms-bridge/lib/secret"
	"github.com/bureau-foundation/sms-bridge/lib/service"
	"github.com/bureau-foundation/sms-bridge/messaging"
)

// SessionState is the lifecycle position of a SessionManager. States
// only move forward.
type SessionState int32

const (
	SessionUnauthenticated SessionState = iota
	SessionAuthenticating
	SessionAuthenticated
	SessionSyncing
	SessionTerminated
)

func (s SessionState) String() string {
	switch s {
	case SessionUnauthenticated:
		return "unauthenticated"
	case SessionAuthenticating:
		return "authenticating"
	case SessionAuthenticated:
		return "authenticated"
	case SessionSyncing:
		return "syncing"
	case SessionTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

var (
	// ErrAlreadyAuthenticated is returned by a second Authenticate call.
	ErrAlreadyAuthenticated = errors.New("bridge: session authentication already attempted")

	// ErrNotAuthenticated is returned by operations that need a logged-in
	// session when there is none.
	ErrNotAuthenticated = errors.New("bridge: session not authenticated")

	// ErrRoomNotJoined is returned by JoinedRoom for a room that is not
	// in the session's joined-room cache.
	ErrRoomNotJoined = errors.New("bridge: room not joined")

	errSyncStarted = errors.New("bridge: sync already started")
)

// AuthError reports a failed login. The cause may be a malformed user
// ID, a discovery failure, or a homeserver rejection; callers treat
// all of them the same way (the process cannot continue).
type AuthError struct {
	UserID string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authenticating as %s: %v", e.UserID, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// syncFilter limits sync responses to what the room cache needs: room
// membership. One create event per joined room makes every joined room
// appear in the initial sync; everything else is suppressed.
const syncFilter = `{` +
	`"presence":{"types":[]},` +
	`"account_data":{"types":[]},` +
	`"room":{` +
	`"timeline":{"limit":1},` +
	`"state":{"types":["m.room.create"]},` +
	`"ephemeral":{"types":[]},` +
	`"account_data":{"types":[]}` +
	`}}`

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	// UserID is the bot account as configured, e.g. "@bot:example.org".
	// Parsed during Authenticate.
	UserID string

	// Password is the bot account password. Read during Authenticate;
	// not closed by the SessionManager. Required.
	Password *secret.Buffer

	// HomeserverURL skips .well-known discovery when set.
	HomeserverURL string

	// HTTPClient is used for discovery and all homeserver requests.
	// Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Sync tunes the long-poll loop. Filter is supplied by the
	// SessionManager; OnFailure is chained after OnSyncFailure.
	Sync service.SyncConfig

	// AcceptInvites makes the bot join rooms it is invited to.
	AcceptInvites bool

	// LogoutTimeout bounds the logout request made by Close.
	// Defaults to 5 seconds.
	LogoutTimeout time.Duration

	// OnSyncFailure, if set, is called for every failed sync attempt.
	OnSyncFailure func(error)

	// Clock drives sync backoff. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// authenticated is published atomically when login succeeds.
type authenticated struct {
	session messaging.Session
	rooms   *messaging.RoomCache
}

// SessionManager owns the process's single homeserver session: login,
// the sync loop, and the joined-room cache. Its state is the sole input
// to the readiness probe. IsReady, ResolveAlias, and JoinedRoom are safe
// to call concurrently with RunSync.
type SessionManager struct {
	config SessionConfig
	logger *slog.Logger

	state       atomic.Int32
	auth        atomic.Pointer[authenticated]
	syncStarted atomic.Bool
	closeOnce   sync.Once

	// lifecycle guards closed and stopSync, so that Close can stop a
	// running RunSync before releasing the access token.
	lifecycle sync.Mutex
	closed    bool
	stopSync  func()
}

// NewSessionManager creates a SessionManager in SessionUnauthenticated.
func NewSessionManager(config SessionConfig) *SessionManager {
	if config.Password == nil {
		panic("bridge.SessionManager: Password is required")
	}
	if config.Logger == nil {
		panic("bridge.SessionManager: Logger is required")
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.LogoutTimeout == 0 {
		config.LogoutTimeout = 5 * time.Second
	}
	config.Sync.Filter = syncFilter

	return &SessionManager{
		config: config,
		logger: config.Logger,
	}
}

// State returns the current lifecycle state.
func (m *SessionManager) State() SessionState {
	return SessionState(m.state.Load())
}

// IsReady reports whether the sync loop is running. It is evaluated on
// every call and never cached.
func (m *SessionManager) IsReady() bool {
	return m.State() == SessionSyncing
}

// Authenticate logs in with the configured credentials. It may be
// called once: later calls return ErrAlreadyAuthenticated without any
// network traffic. A failed login leaves the manager terminated and
// returns an *AuthError.
func (m *SessionManager) Authenticate(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(SessionUnauthenticated), int32(SessionAuthenticating)) {
		return ErrAlreadyAuthenticated
	}

	session, err := m.login(ctx)
	if err == nil {
		err = confirmSession(ctx, session)
		if err != nil {
			session.Close()
		}
	}
	if err != nil {
		m.state.Store(int32(SessionTerminated))
		return &AuthError{UserID: m.config.UserID, Err: err}
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.closed {
		session.Close()
		return &AuthError{UserID: m.config.UserID, Err: ErrNotAuthenticated}
	}
	m.auth.Store(&authenticated{
		session: session,
		rooms:   messaging.NewRoomCache(session),
	})
	m.state.Store(int32(SessionAuthenticated))
	return nil
}

func (m *SessionManager) login(ctx context.Context) (*messaging.DirectSession, error) {
	userID, err := ref.ParseUserID(m.config.UserID)
	if err != nil {
		return nil, err
	}

	homeserverURL := m.config.HomeserverURL
	if homeserverURL == "" {
		homeserverURL, err = messaging.DiscoverHomeserver(ctx, m.config.HTTPClient, userID.Server())
		if err != nil {
			return nil, err
		}
		m.logger.Info("discovered homeserver",
			"server_name", userID.Server().String(),
			"homeserver_url", homeserverURL,
		)
	}

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: homeserverURL,
		HTTPClient:    m.config.HTTPClient,
		Logger:        m.logger,
	})
	if err != nil {
		return nil, err
	}
	session, err := client.Login(ctx, userID, m.config.Password)
	if err != nil {
		return nil, err
	}
	m.logger.Info("logged in to matrix",
		"user_id", session.UserID(),
		"device_id", session.DeviceID(),
		"homeserver_url", client.HomeserverURL(),
	)
	return session, nil
}

// confirmSession checks the new access token with whoami. The
// homeserver must report the account the login response named.
func confirmSession(ctx context.Context, session messaging.Session) error {
	userID, err := session.WhoAmI(ctx)
	if err != nil {
		return fmt.Errorf("confirming session: %w", err)
	}
	if userID != session.UserID() {
		return fmt.Errorf("confirming session: whoami reports %s, login reported %s", userID, session.UserID())
	}
	return nil
}

// RunSync performs the initial sync, marks the session ready, and runs
// the incremental sync loop until ctx is cancelled (returns nil) or the
// loop gives up (returns the cause). The session is terminated when
// RunSync returns, whatever the reason, and is never restarted.
func (m *SessionManager) RunSync(ctx context.Context) error {
	ctx, done, err := m.beginSync(ctx)
	if err != nil {
		return err
	}
	defer close(done)
	defer m.state.Store(int32(SessionTerminated))

	auth := m.auth.Load()
	nextBatch, response, err := service.InitialSync(ctx, auth.session, syncFilter)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	m.handleSync(ctx, response)
	m.checkJoinedRooms(ctx, auth)

	if !m.state.CompareAndSwap(int32(SessionAuthenticated), int32(SessionSyncing)) {
		return nil
	}
	m.logger.Info("matrix session ready",
		"user_id", auth.session.UserID(),
		"joined_rooms", auth.rooms.Len(),
	)

	syncConfig := m.config.Sync
	onFailure := syncConfig.OnFailure
	syncConfig.OnFailure = func(err error) {
		if m.config.OnSyncFailure != nil {
			m.config.OnSyncFailure(err)
		}
		if onFailure != nil {
			onFailure(err)
		}
	}

	return service.RunSyncLoop(ctx, auth.session, syncConfig, nextBatch, m.handleSync, m.config.Clock, m.logger)
}

// beginSync claims the single RunSync slot and registers a cancel
// function for Close. The returned channel must be closed when RunSync
// returns.
func (m *SessionManager) beginSync(ctx context.Context) (context.Context, chan struct{}, error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.syncStarted.Load() {
		return nil, nil, errSyncStarted
	}
	if m.closed || m.State() != SessionAuthenticated {
		return nil, nil, fmt.Errorf("%w (state %s)", ErrNotAuthenticated, m.State())
	}
	m.syncStarted.Store(true)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.stopSync = func() {
		cancel()
		<-done
	}
	return ctx, done, nil
}

// checkJoinedRooms compares the cache built from the initial sync with
// the homeserver's joined_rooms list. The sync response stays
// authoritative; a mismatch is only reported.
func (m *SessionManager) checkJoinedRooms(ctx context.Context, auth *authenticated) {
	joined, err := auth.session.JoinedRooms(ctx)
	if err != nil {
		m.logger.Warn("listing joined rooms failed", "error", err)
		return
	}

	cached := make(map[ref.RoomID]bool)
	for _, roomID := range auth.rooms.RoomIDs() {
		cached[roomID] = true
	}
	var missing []string
	for _, roomID := range joined {
		if !cached[roomID] {
			missing = append(missing, roomID.String())
		}
	}
	if len(missing) > 0 || len(joined) != len(cached) {
		m.logger.Warn("initial sync disagrees with joined_rooms",
			"joined_rooms", len(joined),
			"cached_rooms", len(cached),
			"missing_from_sync", missing,
		)
	}
}

// handleSync applies one sync response to the room cache and accepts
// invites when configured.
func (m *SessionManager) handleSync(ctx context.Context, response *messaging.SyncResponse) {
	auth := m.auth.Load()

	added, removed := auth.rooms.Apply(response)
	if added > 0 || removed > 0 {
		m.logger.Debug("joined rooms changed",
			"added", added,
			"removed", removed,
			"joined_rooms", auth.rooms.Len(),
		)
	}

	if m.config.AcceptInvites && len(response.Rooms.Invite) > 0 {
		service.AcceptInvites(ctx, auth.session, response.Rooms.Invite, m.logger)
	}
}

// ResolveAlias resolves a room alias through the homeserver directory.
func (m *SessionManager) ResolveAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error) {
	auth := m.auth.Load()
	if auth == nil {
		return ref.RoomID{}, ErrNotAuthenticated
	}
	return auth.session.ResolveAlias(ctx, alias)
}

// JoinedRoom returns a handle for roomID from the joined-room cache.
// Returns ErrRoomNotJoined if the room is not cached.
func (m *SessionManager) JoinedRoom(roomID ref.RoomID) (*messaging.Room, error) {
	auth := m.auth.Load()
	if auth == nil {
		return nil, ErrNotAuthenticated
	}
	room, ok := auth.rooms.Room(roomID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotJoined, roomID)
	}
	return room, nil
}

// Close stops a running RunSync and waits for it to return, then logs
// the device out (best effort, bounded by LogoutTimeout) and releases
// the access token. The session is terminated afterwards. Idempotent.
func (m *SessionManager) Close() {
	m.closeOnce.Do(func() {
		m.lifecycle.Lock()
		m.closed = true
		stopSync := m.stopSync
		m.lifecycle.Unlock()

		// A running sync must stop before the token is released.
		if stopSync != nil {
			stopSync()
		}
		m.state.Store(int32(SessionTerminated))

		auth := m.auth.Load()
		if auth == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.config.LogoutTimeout)
		defer cancel()
		if err := auth.session.Logout(ctx); err != nil {
			m.logger.Warn("matrix logout failed", "error", err)
		} else {
			m.logger.Info("logged out of matrix", "user_id", auth.session.UserID())
		}
		auth.session.Close()
	})
}
