package model

import "time"

type EventType string

const (
	EventSystem EventType = "system"
	EventChat   EventType = "chat"
	EventError  EventType = "error"
)

// Event is one outbound frame toward the transport layer.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data"`
}

type SystemPayload struct {
	Msg string `json:"msg"`
}

type ChatPayload struct {
	From string    `json:"from"`
	Room string    `json:"room"`
	Body string    `json:"body"`
	Ts   time.Time `json:"ts"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

func NewSystemEvent(msg string) Event {
	return Event{Type: EventSystem, Data: SystemPayload{Msg: msg}}
}

func NewChatEvent(room string, m Message) Event {
	return Event{Type: EventChat, Data: ChatPayload{From: m.From, Room: room, Body: m.Body, Ts: m.Timestamp}}
}

func NewErrorEvent(reason string) Event {
	return Event{Type: EventError, Data: ErrorPayload{Reason: reason}}
}
