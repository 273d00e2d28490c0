package eventbus

import (
	"saga-coordinator/internal/common/logger"
)

// NewEventBus creates a Kafka-backed EventBus.
// Multiple brokers can be specified: "broker1:9092,broker2:9092".
func NewEventBus(brokers []string, l logger.Logger) (EventBus, error) {
	return newEventBusImpl(brokers, l)
}
