// Package notify pushes status transition events to the surrounding
// platform. Events are addressed per tenant; the frontend gateway fans them
// out to connected clients.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

// Event is one status transition. Exactly one of DocumentID or ExportID is
// set depending on the entity that moved.
type Event struct {
	DocumentID   string `json:"document_id,omitempty"`
	ExportID     string `json:"export_id,omitempty"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Notifier delivers one event per status transition.
type Notifier interface {
	Notify(ctx context.Context, tenantID string, event Event) error
}

// Publisher delivers events over redis pub/sub on a per-tenant channel.
type Publisher struct {
	client *redis.Client
	logger *log.Logger
}

func NewPublisher(client *redis.Client, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.New(os.Stdout, "[NOTIFY] ", log.LstdFlags)
	}
	return &Publisher{client: client, logger: logger}
}

// Channel returns the per-tenant pub/sub channel name.
func Channel(tenantID string) string {
	return "notifications:" + tenantID
}

func (p *Publisher) Notify(ctx context.Context, tenantID string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(tenantID), payload).Err(); err != nil {
		return fmt.Errorf("publish notification to %s: %w", Channel(tenantID), err)
	}
	return nil
}

// Noop drops every event. Used when the notification gateway is not
// configured, so workers never branch on nil.
type Noop struct{}

func (Noop) Notify(context.Context, string, Event) error { return nil }

var (
	_ Notifier = (*Publisher)(nil)
	_ Notifier = Noop{}
)
