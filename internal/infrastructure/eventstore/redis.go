package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"saga-coordinator/internal/domain/events"

	"github.com/redis/go-redis/v9"
)

const (
	sagaEventsKeyPrefix = "saga:events:"
	sagaInstancesKey    = "saga:instances"
)

// RedisEventStore keeps each instance's log in a Redis list, with a set of
// known instance ids for scanning. Intended for deployments without a
// relational store; the paged time-window query walks every instance, so it
// trades query cost for operational simplicity.
type RedisEventStore struct {
	client *redis.Client
}

func NewRedisEventStore(addr string) (*RedisEventStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisEventStore{client: client}, nil
}

type redisEnvelope struct {
	ID             string               `json:"id"`
	Type           string               `json:"type"`
	SagaID         string               `json:"saga_id"`
	Content        json.RawMessage      `json:"content"`
	Metadata       events.EventMetadata `json:"metadata"`
	Timestamp      time.Time            `json:"timestamp"`
	SequenceNumber int64                `json:"sequence_number"`
}

func (es *RedisEventStore) SaveEvent(ctx context.Context, event events.Event) error {
	content, err := json.Marshal(event.Data())
	if err != nil {
		return fmt.Errorf("failed to marshal event content: %w", err)
	}

	envelope := redisEnvelope{
		ID:             event.ID(),
		Type:           event.Type(),
		SagaID:         event.SagaID(),
		Content:        content,
		Metadata:       event.Metadata(),
		Timestamp:      event.Timestamp(),
		SequenceNumber: event.SequenceNumber(),
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	pipe := es.client.TxPipeline()
	pipe.RPush(ctx, sagaEventsKeyPrefix+event.SagaID(), raw)
	pipe.SAdd(ctx, sagaInstancesKey, event.SagaID())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	return nil
}

func (es *RedisEventStore) LoadEvents(ctx context.Context, sagaID string) ([]events.Event, error) {
	raws, err := es.client.LRange(ctx, sagaEventsKeyPrefix+sagaID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	loaded := make([]events.Event, 0, len(raws))
	for _, raw := range raws {
		event, err := decodeEnvelope([]byte(raw))
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, event)
	}

	return loaded, nil
}

func (es *RedisEventStore) LoadAllEvents(ctx context.Context) ([]events.Event, error) {
	ids, err := es.client.SMembers(ctx, sagaInstancesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list saga instances: %w", err)
	}
	sort.Strings(ids)

	var all []events.Event
	for _, id := range ids {
		loaded, err := es.LoadEvents(ctx, id)
		if err != nil {
			return nil, err
		}
		all = append(all, loaded...)
	}

	return all, nil
}

func (es *RedisEventStore) LoadSagaStartedBetween(ctx context.Context, from, to time.Time, offset, limit int) ([]events.Event, int, error) {
	ids, err := es.client.SMembers(ctx, sagaInstancesKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list saga instances: %w", err)
	}

	var matches []events.Event
	for _, id := range ids {
		loaded, err := es.LoadEvents(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		for _, event := range loaded {
			if event.Type() != events.TypeSagaStarted {
				continue
			}
			ts := event.Timestamp()
			if ts.Before(from) || ts.After(to) {
				continue
			}
			matches = append(matches, event)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Timestamp().After(matches[j].Timestamp())
	})

	total := len(matches)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return matches[offset:end], total, nil
}

func (es *RedisEventStore) PendingSagaIDs(ctx context.Context) ([]string, error) {
	ids, err := es.client.SMembers(ctx, sagaInstancesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list saga instances: %w", err)
	}
	sort.Strings(ids)

	var pending []string
	for _, id := range ids {
		loaded, err := es.LoadEvents(ctx, id)
		if err != nil {
			return nil, err
		}

		started, ended := false, false
		for _, event := range loaded {
			switch event.Type() {
			case events.TypeSagaStarted:
				started = true
			case events.TypeSagaEnded:
				ended = true
			}
		}
		if started && !ended {
			pending = append(pending, id)
		}
	}

	return pending, nil
}

func decodeEnvelope(raw []byte) (events.Event, error) {
	var envelope redisEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
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

func (es *RedisEventStore) Close() error {
	return es.client.Close()
}
