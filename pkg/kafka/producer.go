package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	appctx "github.com/Ramsey-B/iris/pkg/context"
	"github.com/Ramsey-B/iris/pkg/metrics"
	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

// DefaultAuditTopic receives one message per finalized sync run.
const DefaultAuditTopic = "iris.audit"

// Config holds Kafka configuration
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, topic string) Config {
	brokerList := ectolinq.Filter(ectolinq.Map(strings.Split(brokers, ","), strings.TrimSpace), func(broker string) bool {
		return broker != ""
	})
	if topic == "" {
		topic = DefaultAuditTopic
	}

	return Config{
		Brokers:      brokerList,
		Topic:        topic,
		WriteTimeout: 10 * time.Second,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes audit events to Kafka
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger ectologger.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return newProducer(writer, cfg.Topic, logger), nil
}

func newProducer(writer messageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// AuditMessage is the wire form of an audit event
type AuditMessage struct {
	ID            string         `json:"id"`
	Actor         string         `json:"actor"`
	Action        string         `json:"action"`
	TargetType    string         `json:"target_type"`
	TargetID      string         `json:"target_id"`
	Details       map[string]any `json:"details"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// PublishAudit publishes one audit event keyed by its target, so events for
// a connection stay ordered within a partition.
func (p *Producer) PublishAudit(ctx context.Context, event *models.AuditEvent) error {
	if event == nil {
		return fmt.Errorf("audit event is nil")
	}

	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishAudit")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("audit.action", event.Action),
		attribute.String("audit.target_id", event.TargetID),
	)

	msg := AuditMessage{
		ID:            event.ID.String(),
		Actor:         event.Actor,
		Action:        event.Action,
		TargetType:    event.TargetType,
		TargetID:      event.TargetID,
		Details:       event.Details.Data,
		CorrelationID: appctx.GetCorrelationID(ctx),
		Timestamp:     event.CreatedAt,
		TraceID:       tracing.GetTraceID(ctx),
		SpanID:        tracing.GetSpanID(ctx),
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "actor", Value: []byte(event.Actor)},
		{Key: "action", Value: []byte(event.Action)},
		{Key: "target_type", Value: []byte(event.TargetType)},
	}
	if msg.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: "correlation_id", Value: []byte(msg.CorrelationID)})
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.TargetID),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		metrics.RecordKafkaPublish(p.topic, "error", time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish message")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish audit event to Kafka topic %s", p.topic)
		return err
	}
	metrics.RecordKafkaPublish(p.topic, "success", time.Since(start).Seconds())

	span.SetStatus(codes.Ok, "message published")
	p.logger.WithContext(ctx).Debugf("Published audit event %s to Kafka topic %s", msg.ID, p.topic)
	return nil
}
