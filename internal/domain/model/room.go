package model

import (
	"time"
)

// Message is one entry of a room's history. Immutable once appended.
type Message struct {
	From      string    `json:"from"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"ts"`
}

// Room holds the durable metadata of a named channel. History lives next to it
// in Snapshot.Messages so the persisted document keeps the two top-level maps.
type Room struct {
	Members     []string  `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

func NewRoom(now time.Time) *Room {
	return &Room{
		Members:     []string{},
		CreatedAt:   now,
		LastUpdated: now,
	}
}

func (r *Room) HasMember(name string) bool {
	for _, m := range r.Members {
		if m == name {
			return true
		}
	}
	return false
}

// AddMember reports whether the member set changed.
func (r *Room) AddMember(name string) bool {
	if r.HasMember(name) {
		return false
	}
	r.Members = append(r.Members, name)
	return true
}

// RemoveMember reports whether the member set changed.
func (r *Room) RemoveMember(name string) bool {
	for i, m := range r.Members {
		if m == name {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return true
		}
	}
	return false
}

// RoomInfo is the read-only view returned to inspection callers.
type RoomInfo struct {
	Name         string    `json:"name"`
	Members      []string  `json:"members"`
	CreatedAt    time.Time `json:"created_at"`
	LastUpdated  time.Time `json:"last_updated"`
	MessageCount int       `json:"message_count"`
}

// Snapshot is the full persisted state: room metadata and per-room history.
type Snapshot struct {
	Rooms    map[string]*Room     `json:"rooms"`
	Messages map[string][]Message `json:"messages"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Rooms:    map[string]*Room{},
		Messages: map[string][]Message{},
	}
}

// ResetMembers prepares a loaded snapshot for a fresh process. Missing maps are
// created, rooms and history buckets are paired up and no member survives a
// restart.
func (s *Snapshot) ResetMembers() {
	if s.Rooms == nil {
		s.Rooms = map[string]*Room{}
	}
	if s.Messages == nil {
		s.Messages = map[string][]Message{}
	}
	for name, r := range s.Rooms {
		if r == nil {
			r = &Room{}
			s.Rooms[name] = r
		}
		r.Members = []string{}
		if _, ok := s.Messages[name]; !ok {
			s.Messages[name] = []Message{}
		}
	}
	// History without room metadata gets a room so it stays reachable.
	for name, msgs := range s.Messages {
		if _, ok := s.Rooms[name]; ok {
			continue
		}
		r := &Room{Members: []string{}}
		if len(msgs) > 0 {
			r.CreatedAt = msgs[0].Timestamp
			r.LastUpdated = msgs[len(msgs)-1].Timestamp
		}
		s.Rooms[name] = r
	}
}

// Clone returns a copy that shares no mutable slices with s. Messages are
// values, so copying the slices is enough.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Rooms:    make(map[string]*Room, len(s.Rooms)),
		Messages: make(map[string][]Message, len(s.Messages)),
	}
	for name, r := range s.Rooms {
		cp := *r
		cp.Members = append([]string{}, r.Members...)
		out.Rooms[name] = &cp
	}
	for name, msgs := range s.Messages {
		out.Messages[name] = append([]Message{}, msgs...)
	}
	return out
}
