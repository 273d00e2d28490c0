package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"saga-coordinator/internal/common/logger"
	"saga-coordinator/internal/domain/events"

	"github.com/segmentio/kafka-go"
)

const (
	defaultNumPartitions = 12
	readTimeout          = 10 * time.Second
	writeTimeout         = 10 * time.Second
)

// eventBusImpl implements the EventBus interface on Kafka.
type eventBusImpl struct {
	brokers       []string
	numPartitions int
	logger        logger.Logger
	writers       map[string]*kafka.Writer
	readers       map[string]*kafka.Reader
	writersMu     sync.RWMutex
	readersMu     sync.RWMutex
	running       bool
	mu            sync.RWMutex
}

func newEventBusImpl(brokers []string, l logger.Logger) (EventBus, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}

	bus := &eventBusImpl{
		brokers:       brokers,
		numPartitions: defaultNumPartitions,
		logger:        l,
		writers:       make(map[string]*kafka.Writer),
		readers:       make(map[string]*kafka.Reader),
		running:       true,
	}

	return bus, nil
}

// Publish publishes an event to a topic. Events are keyed and partitioned by
// saga id so all events of one global transaction stay relatively ordered.
func (b *eventBusImpl) Publish(ctx context.Context, topicName string, event events.Event) error {
	b.mu.RLock()
	if !b.running {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is closed")
	}
	b.mu.RUnlock()

	writer := b.getOrCreateWriter(topicName)

	partitionID, err := PartitionFor(event, b.numPartitions)
	if err != nil {
		return fmt.Errorf("failed to calculate partition: %w", err)
	}

	eventJSON, err := marshalEvent(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.SagaID()),
		Value: eventJSON,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type())},
			{Key: "event_id", Value: []byte(event.ID())},
		},
		Partition: partitionID,
		Time:      event.Timestamp(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := writer.WriteMessages(writeCtx, message); err != nil {
		return fmt.Errorf("failed to write message to topic %s: %w", topicName, err)
	}

	return nil
}

// Subscribe subscribes to events from a topic with an auto-generated
// consumer group ID.
func (b *eventBusImpl) Subscribe(ctx context.Context, topicName string, handler EventHandler) error {
	return b.SubscribeWithGroupID(ctx, topicName, "", handler)
}

// SubscribeWithGroupID subscribes to events from a topic with a specific consumer group ID
func (b *eventBusImpl) SubscribeWithGroupID(ctx context.Context, topicName, groupID string, handler EventHandler) error {
	reader := b.getOrCreateReader(topicName, groupID)

	go b.consumeEvents(ctx, reader, handler)

	return nil
}

func (b *eventBusImpl) consumeEvents(ctx context.Context, reader *kafka.Reader, handler EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			b.mu.RLock()
			if !b.running {
				b.mu.RUnlock()
				return
			}
			b.mu.RUnlock()

			readCtx, cancel := context.WithTimeout(ctx, readTimeout)

			message, err := reader.FetchMessage(readCtx)
			cancel()

			if err != nil {
				if err == context.DeadlineExceeded || err == context.Canceled {
					continue
				}
				b.logger.Error("Failed to fetch message", logger.Field{Key: "error", Value: err})
				time.Sleep(100 * time.Millisecond)
				continue
			}

			event, err := unmarshalEvent(message)
			if err != nil {
				b.logger.Error("Failed to unmarshal event", logger.Field{Key: "error", Value: err})
				if err := reader.CommitMessages(ctx, message); err != nil {
					b.logger.Error("Failed to commit invalid message", logger.Field{Key: "error", Value: err})
				}
				continue
			}

			if err := handler(ctx, event); err != nil {
				b.logger.Error("Failed to handle event",
					logger.Field{Key: "event_type", Value: event.Type()},
					logger.Field{Key: "error", Value: err})
			}

			if err := reader.CommitMessages(ctx, message); err != nil {
				b.logger.Error("Failed to commit message", logger.Field{Key: "error", Value: err})
			}
		}
	}
}

type wireEnvelope struct {
	ID             string               `json:"id"`
	Type           string               `json:"type"`
	SagaID         string               `json:"saga_id"`
	Content        json.RawMessage      `json:"content"`
	Metadata       events.EventMetadata `json:"metadata"`
	Timestamp      time.Time            `json:"timestamp"`
	SequenceNumber int64                `json:"sequence_number"`
}

func marshalEvent(event events.Event) ([]byte, error) {
	content, err := json.Marshal(event.Data())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event content: %w", err)
	}

	return json.Marshal(wireEnvelope{
		ID:             event.ID(),
		Type:           event.Type(),
		SagaID:         event.SagaID(),
		Content:        content,
		Metadata:       event.Metadata(),
		Timestamp:      event.Timestamp(),
		SequenceNumber: event.SequenceNumber(),
	})
}

func unmarshalEvent(msg kafka.Message) (events.Event, error) {
	var envelope wireEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	data, err := events.DecodeData(envelope.Type, envelope.Content)
	if err != nil {
		return nil, err
	}

	return events.NewBaseEventWithTimestamp(
		envelope.ID,
		envelope.Type,
		envelope.SagaID,
		data,
		envelope.Metadata,
		envelope.SequenceNumber,
		envelope.Timestamp,
	), nil
}

func (b *eventBusImpl) getOrCreateWriter(topicName string) *kafka.Writer {
	b.writersMu.RLock()
	if writer, exists := b.writers[topicName]; exists {
		b.writersMu.RUnlock()
		return writer
	}
	b.writersMu.RUnlock()

	b.writersMu.Lock()
	defer b.writersMu.Unlock()

	if writer, exists := b.writers[topicName]; exists {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(b.brokers...),
		Topic:        topicName,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	b.writers[topicName] = writer
	return writer
}

func (b *eventBusImpl) getOrCreateReader(topicName, groupID string) *kafka.Reader {
	readerKey := topicName
	if groupID != "" {
		readerKey = topicName + ":" + groupID
	}

	b.readersMu.RLock()
	if reader, exists := b.readers[readerKey]; exists {
		b.readersMu.RUnlock()
		return reader
	}
	b.readersMu.RUnlock()

	b.readersMu.Lock()
	defer b.readersMu.Unlock()

	if reader, exists := b.readers[readerKey]; exists {
		return reader
	}

	if groupID == "" {
		groupID = fmt.Sprintf("consumer-%s-%d", topicName, time.Now().Unix())
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		Topic:       topicName,
		GroupID:     groupID,
		MinBytes:    10e3,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		StartOffset: kafka.FirstOffset,
	})

	b.readers[readerKey] = reader
	return reader
}

// Close closes all connections
func (b *eventBusImpl) Close() error {
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()

	var errs []error

	b.writersMu.Lock()
	for topic, writer := range b.writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close writer for topic %s: %w", topic, err))
		}
	}
	b.writersMu.Unlock()

	b.readersMu.Lock()
	for topic, reader := range b.readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close reader for topic %s: %w", topic, err))
		}
	}
	b.readersMu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("errors closing event bus: %v", errs)
	}

	return nil
}
