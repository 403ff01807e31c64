package mqtt

import log "github.com/sirupsen/logrus"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineQueue is a bounded FIFO holding messages while disconnected. The
// broker keeps only the last retained message per topic, so a retained
// message supersedes any queued retained message on the same topic.
// Not safe for concurrent use; the caller synchronizes.
type offlineQueue struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // messages lost to overflow since the last drain
}

func newOfflineQueue(capacity int) *offlineQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &offlineQueue{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (q *offlineQueue) push(msg bufferedMsg) {
	if msg.retained {
		for i, m := range q.msgs {
			if m.retained && m.topic == msg.topic {
				q.msgs = append(q.msgs[:i], q.msgs[i+1:]...)
				break
			}
		}
	}
	if len(q.msgs) == q.capacity {
		if q.dropped == 0 {
			log.WithField("capacity", q.capacity).Warn("mqtt: offline queue full, dropping oldest")
		}
		q.dropped++
		q.msgs = append(q.msgs[:0], q.msgs[1:]...)
	}
	q.msgs = append(q.msgs, msg)
}

// drainAll returns the queued messages oldest first and empties the queue.
func (q *offlineQueue) drainAll() []bufferedMsg {
	if len(q.msgs) == 0 {
		return nil
	}
	if q.dropped > 0 {
		log.WithField("dropped", q.dropped).Warn("mqtt: messages lost while offline")
	}
	out := make([]bufferedMsg, len(q.msgs))
	copy(out, q.msgs)
	q.msgs = q.msgs[:0]
	q.dropped = 0
	return out
}

func (q *offlineQueue) len() int {
	return len(q.msgs)
}
