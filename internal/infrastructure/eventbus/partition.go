package eventbus

import (
	"fmt"
	"hash/fnv"

	"saga-coordinator/internal/domain/events"
)

// PartitionFor maps an event to a partition by its saga id, so that all
// lifecycle events of one global transaction land on the same partition and
// keep their relative order.
func PartitionFor(event events.Event, numPartitions int) (int, error) {
	if numPartitions <= 0 {
		return 0, fmt.Errorf("invalid number of partitions: %d", numPartitions)
	}

	sagaID := event.SagaID()
	if sagaID == "" {
		return 0, fmt.Errorf("cannot determine partition: event %s has no saga id", event.ID())
	}

	return hashKey(sagaID) % numPartitions, nil
}

func hashKey(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() & 0x7fffffff)
}
