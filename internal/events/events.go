// Package events publishes task and account lifecycle notifications on the
// message bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskflow/apiserver/internal/mq"
)

const (
	UserRegistered = "user.registered"
	UserDeleted    = "user.deleted"
	TaskCreated    = "task.created"
	TaskUpdated    = "task.updated"
	TaskCompleted  = "task.completed"
	TaskDeleted    = "task.deleted"
)

const publishTimeout = 2 * time.Second

// Event is the JSON body of every published message.
type Event struct {
	Type   string    `json:"type"`
	UserID int       `json:"userId"`
	TaskID int       `json:"taskId,omitempty"`
	At     time.Time `json:"at"`
}

func New(typ string, userID, taskID int) Event {
	return Event{
		Type:   typ,
		UserID: userID,
		TaskID: taskID,
		At:     time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// MQPublisher encodes events as JSON and sends them on a single channel.
type MQPublisher struct {
	bus     *mq.MQ
	channel string
}

func NewMQPublisher(bus *mq.MQ, channel string) *MQPublisher {
	return &MQPublisher{bus: bus, channel: channel}
}

// Publish detaches from the caller's cancellation so a finished request does
// not abort delivery, but still bounds the wait.
func (p *MQPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if _, err := p.bus.Publish(ctx, p.channel, data, map[string]string{"type": event.Type}); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Decode parses a delivered message back into an Event.
func Decode(msg mq.Message) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event %s: %w", msg.ID, err)
	}
	if event.Type == "" {
		event.Type = msg.Attributes["type"]
	}
	return event, nil
}
