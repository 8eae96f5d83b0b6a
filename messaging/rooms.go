// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"sort"
	"sync"

	"github.com/bureau-foundation/sms-bridge/lib/ref"
)

// MessageSender sends a message into a room by ID.
type MessageSender interface {
	SendMessage(ctx context.Context, roomID ref.RoomID, content MessageContent) (ref.EventID, error)
}

// Room is a handle to a joined room. Handles are cheap and are not
// invalidated when the room later leaves the cache; a send into a room
// the account has since left fails at the homeserver.
type Room struct {
	id     ref.RoomID
	sender MessageSender
}

// ID returns the room ID.
func (r *Room) ID() ref.RoomID {
	return r.id
}

// Send posts content into the room and returns the new event ID.
func (r *Room) Send(ctx context.Context, content MessageContent) (ref.EventID, error) {
	return r.sender.SendMessage(ctx, r.id, content)
}

// RoomCache is the set of rooms the account has joined, as last
// reported by sync. Apply is the only writer; Room and RoomIDs may be
// called from any goroutine.
type RoomCache struct {
	sender MessageSender

	mu     sync.RWMutex
	joined map[ref.RoomID]struct{}
}

// NewRoomCache creates an empty cache whose Room handles send through
// sender.
func NewRoomCache(sender MessageSender) *RoomCache {
	if sender == nil {
		panic("messaging.RoomCache: sender is required")
	}
	return &RoomCache{
		sender: sender,
		joined: make(map[ref.RoomID]struct{}),
	}
}

// Apply records the membership changes in a sync response: rooms under
// rooms.join are added, rooms under rooms.leave are removed. Rooms that
// appear in neither keep their current state, which is what incremental
// sync requires (only rooms with new activity are reported). Returns the
// number of rooms added and removed.
func (c *RoomCache) Apply(response *SyncResponse) (added, removed int) {
	if response == nil {
		return 0, 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for roomID := range response.Rooms.Join {
		if _, ok := c.joined[roomID]; !ok {
			c.joined[roomID] = struct{}{}
			added++
		}
	}
	for roomID := range response.Rooms.Leave {
		if _, ok := c.joined[roomID]; ok {
			delete(c.joined, roomID)
			removed++
		}
	}
	return added, removed
}

// Room returns a handle for roomID if the account is joined to it.
func (c *RoomCache) Room(roomID ref.RoomID) (*Room, bool) {
	c.mu.RLock()
	_, ok := c.joined[roomID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return &Room{id: roomID, sender: c.sender}, true
}

// RoomIDs returns the joined room IDs in sorted order.
func (c *RoomCache) RoomIDs() []ref.RoomID {
	c.mu.RLock()
	roomIDs := make([]ref.RoomID, 0, len(c.joined))
	for roomID := range c.joined {
		roomIDs = append(roomIDs, roomID)
	}
	c.mu.RUnlock()

	sort.Slice(roomIDs, func(i, j int) bool {
		return roomIDs[i].String() < roomIDs[j].String()
	})
	return roomIDs
}

// Len returns the number of joined rooms.
func (c *RoomCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.joined)
}
