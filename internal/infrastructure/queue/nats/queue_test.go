package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
	"github.com/kirillkom/compass-docsync/internal/infrastructure/resilience"
)

type publisherFake struct {
	msgs  []*nats.Msg
	errs  []error
	calls int
}

func (p *publisherFake) PublishMsg(msg *nats.Msg) error {
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return err
		}
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestPublishStatusChangesSendsOneMessagePerChange(t *testing.T) {
	pub := &publisherFake{}
	q := newQueue(pub, "documents.status", nil, nil)

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	changes := []domain.StatusChange{
		{DocumentID: "doc-1", Filename: "a.pdf", From: domain.StatusProcessing, To: domain.StatusCompleted, ObservedAt: at},
		{DocumentID: "doc-2", Filename: "b.png", To: domain.StatusUploaded, ObservedAt: at},
	}
	if err := q.PublishStatusChanges(context.Background(), changes); err != nil {
		t.Fatalf("PublishStatusChanges() error = %v", err)
	}
	if len(pub.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.Subject != "documents.status" || msg.Header.Get(HeaderDocumentID) != "doc-1" {
		t.Fatalf("unexpected message: subject=%q header=%v", msg.Subject, msg.Header)
	}
	if msg.Header.Get("Content-Type") != "application/cloudevents+json" {
		t.Fatalf("expected structured cloudevent content type, got %q", msg.Header.Get("Content-Type"))
	}

	var envelope map[string]any
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if envelope["type"] != EventTypeStatusChanged || envelope["source"] != EventSource || envelope["subject"] != "doc-1" {
		t.Fatalf("unexpected envelope: %s", msg.Data)
	}
	data, _ := envelope["data"].(map[string]any)
	if data["from"] != "processing" || data["to"] != "completed" {
		t.Fatalf("unexpected payload: %s", msg.Data)
	}

	var second map[string]any
	_ = json.Unmarshal(pub.msgs[1].Data, &second)
	secondData, _ := second["data"].(map[string]any)
	if _, ok := secondData["from"]; ok {
		t.Fatalf("new document must not carry a from status: %s", pub.msgs[1].Data)
	}
	if second["id"] == envelope["id"] {
		t.Fatalf("expected unique event ids")
	}
}

func TestPublishRetriesDisconnectAndWrapsTemporary(t *testing.T) {
	pub := &publisherFake{errs: []error{nats.ErrDisconnected, nil}}
	exec := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 2, RetryInitialBackoff: time.Millisecond})
	q := newQueue(pub, "documents.status", exec, nil)

	change := []domain.StatusChange{{DocumentID: "doc-1", To: domain.StatusFailed}}
	if err := q.PublishStatusChanges(context.Background(), change); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if pub.calls != 2 {
		t.Fatalf("expected 2 publish calls, got %d", pub.calls)
	}

	down := &publisherFake{errs: []error{nats.ErrConnectionClosed}}
	err := newQueue(down, "documents.status", nil, nil).PublishStatusChanges(context.Background(), change)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestPublishKeepsGoingAfterOneFailure(t *testing.T) {
	pub := &publisherFake{errs: []error{nats.ErrMaxPayload, nil}}
	q := newQueue(pub, "documents.status", nil, nil)

	err := q.PublishStatusChanges(context.Background(), []domain.StatusChange{
		{DocumentID: "doc-1", To: domain.StatusCompleted},
		{DocumentID: "doc-2", To: domain.StatusCompleted},
	})
	if !errors.Is(err, nats.ErrMaxPayload) || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent payload error, got %v", err)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Header.Get(HeaderDocumentID) != "doc-2" {
		t.Fatalf("expected second change to be published")
	}
}

func TestDecodeStatusChangeRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	payload, err := encodeStatusChange(domain.StatusChange{
		DocumentID: "doc-1",
		Filename:   "a.pdf",
		From:       domain.StatusProcessing,
		To:         domain.StatusFailed,
		ObservedAt: at,
	})
	if err != nil {
		t.Fatalf("encodeStatusChange() error = %v", err)
	}

	change, err := decodeStatusChange(payload)
	if err != nil {
		t.Fatalf("decodeStatusChange() error = %v", err)
	}
	if change.To != domain.StatusFailed || change.From != domain.StatusProcessing || !change.ObservedAt.Equal(at) {
		t.Fatalf("unexpected change: %+v", change)
	}
}

func TestDecodeStatusChangeRejectsForeignEvents(t *testing.T) {
	foreign := []byte(`{"specversion":"1.0","id":"1","source":"elsewhere","type":"com.example.other","datacontenttype":"application/json","data":{"document_id":"doc-1"}}`)
	if _, err := decodeStatusChange(foreign); err == nil {
		t.Fatalf("expected error for foreign event type")
	}

	missingID := []byte(`{"specversion":"1.0","id":"1","source":"compass-docsync","type":"` + EventTypeStatusChanged + `","datacontenttype":"application/json","data":{"to":"failed"}}`)
	if _, err := decodeStatusChange(missingID); err == nil {
		t.Fatalf("expected error without document id")
	}

	if _, err := decodeStatusChange([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}
