package nats

import (
	"encoding/json"
	"fmt"

	cloudevent "github.com/cloudevents/sdk-go/v2/event"
	"github.com/google/uuid"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

const (
	EventSource            = "compass-docsync"
	EventTypeStatusChanged = "com.compass.document.status_changed"
)

// encodeStatusChange wraps change in a structured-mode CloudEvent. The
// document id doubles as the event subject.
func encodeStatusChange(change domain.StatusChange) ([]byte, error) {
	event := cloudevent.New()
	event.SetID(uuid.NewString())
	event.SetSource(EventSource)
	event.SetType(EventTypeStatusChanged)
	event.SetSubject(change.DocumentID)
	if !change.ObservedAt.IsZero() {
		event.SetTime(change.ObservedAt)
	}
	if err := event.SetData(cloudevent.ApplicationJSON, change); err != nil {
		return nil, fmt.Errorf("encode status change data: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate status event: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal status event: %w", err)
	}
	return payload, nil
}

func decodeStatusChange(data []byte) (domain.StatusChange, error) {
	var event cloudevent.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.StatusChange{}, fmt.Errorf("decode status event: %w", err)
	}
	if event.Type() != EventTypeStatusChanged {
		return domain.StatusChange{}, fmt.Errorf("decode status event: unexpected type %q", event.Type())
	}

	var change domain.StatusChange
	if err := event.DataAs(&change); err != nil {
		return domain.StatusChange{}, fmt.Errorf("decode status change: %w", err)
	}
	if change.DocumentID == "" {
		change.DocumentID = event.Subject()
	}
	if change.DocumentID == "" {
		return domain.StatusChange{}, fmt.Errorf("decode status change: missing document_id")
	}
	return change, nil
}
