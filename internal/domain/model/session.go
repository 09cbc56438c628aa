package model

import "time"

// Session binds one live connection to a display name and at most one room.
// Sessions exist only in memory.
type Session struct {
	ID       string
	Name     string
	Room     string
	JoinedAt time.Time
}

func (s *Session) InRoom() bool { return s != nil && s.Room != "" }
