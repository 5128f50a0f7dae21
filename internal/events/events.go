// Package events publishes document lifecycle notifications.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"docservice/internal/model"
)

// Type names the lifecycle change. It is also the last subject token.
type Type string

const (
	Created Type = "created"
	Updated Type = "updated"
	Deleted Type = "deleted"
)

// Event is the JSON body of every published message.
type Event struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	OccurredAt     time.Time `json:"occurred_at"`
	DocumentID     int64     `json:"document_id"`
	ExternalID     string    `json:"uuid"`
	DisplayName    string    `json:"file_name"`
	ClassifiedType string    `json:"file_type"`
	HasThumbnail   bool      `json:"has_thumbnail"`
}

// NewEvent builds an event for doc with a fresh message id.
func NewEvent(t Type, doc *model.Document, now time.Time) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           t,
		OccurredAt:     now.UTC(),
		DocumentID:     doc.ID,
		ExternalID:     doc.ExternalID,
		DisplayName:    doc.DisplayName,
		ClassifiedType: string(doc.ClassifiedType),
		HasThumbnail:   doc.HasThumbnail(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Noop discards every event. It is used when NATS_URL is empty.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close()                               {}
