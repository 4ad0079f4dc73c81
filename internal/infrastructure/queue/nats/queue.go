package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cloudevent "github.com/cloudevents/sdk-go/v2/event"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
	"github.com/kirillkom/compass-docsync/internal/infrastructure/resilience"
)

const HeaderDocumentID = "Document-Id"

type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Queue publishes document status changes and lets other processes follow them.
type Queue struct {
	conn      *nats.Conn
	publisher msgPublisher
	subject   string
	executor  *resilience.Executor
	logger    *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("compass-docsync"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	q := newQueue(conn, subject, options.ResilienceExecutor, logger)
	q.conn = conn
	return q, nil
}

func newQueue(publisher msgPublisher, subject string, executor *resilience.Executor, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		publisher: publisher,
		subject:   subject,
		executor:  executor,
		logger:    logger,
	}
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishStatusChanges sends one message per change so subscribers can
// filter by document without decoding a batch.
func (q *Queue) PublishStatusChanges(ctx context.Context, changes []domain.StatusChange) error {
	var errs []error
	for _, change := range changes {
		if err := q.publishChange(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (q *Queue) publishChange(ctx context.Context, change domain.StatusChange) error {
	payload, err := encodeStatusChange(change)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(q.subject)
	msg.Data = payload
	msg.Header.Set("Content-Type", cloudevent.ApplicationCloudEventsJSON)
	msg.Header.Set(HeaderDocumentID, change.DocumentID)

	call := func(_ context.Context) error {
		if err := q.publisher.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return asTemporary(err)
	}
	return nil
}

// SubscribeStatusChanges blocks until ctx is done, handing every decoded change to handler.
func (q *Queue) SubscribeStatusChanges(ctx context.Context, handler func(context.Context, domain.StatusChange) error) error {
	if q.conn == nil {
		return fmt.Errorf("nats subscribe: queue has no connection")
	}
	sub, err := q.conn.Subscribe(q.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		change, err := decodeStatusChange(msg.Data)
		if err != nil {
			q.logger.Warn("status_event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, change); err != nil {
			q.logger.Error("status_event_handler_failed", "document_id", change.DocumentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
