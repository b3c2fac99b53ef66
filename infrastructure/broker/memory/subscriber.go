package memory

import (
	"chat-search/contract"
	"chat-search/errors"
	"context"
	"fmt"
	"slices"
)

var _ contract.EventSubscriber = (*Subscriber)(nil)

// Subscriber is one member of a consumer group.
type Subscriber struct {
	broker    *Broker
	topic     string
	groupID   string
	memberID  int
	assigned  []int
	positions map[int]int64
	cursor    int
	closed    bool
}

// Fetch round-robins over the assigned partitions and blocks while none has a record.
func (s *Subscriber) Fetch(ctx context.Context) (contract.Delivery, error) {
	b := s.broker
	for {
		b.mu.Lock()
		if s.closed || b.closed {
			b.mu.Unlock()
			return contract.Delivery{}, errors.ErrSubscriberClosed
		}
		if d, ok := s.next(); ok {
			b.mu.Unlock()
			return d, nil
		}
		wait := b.notify
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return contract.Delivery{}, ctx.Err()
		case <-wait:
		}
	}
}

// next returns the next record of an assigned partition. Callers hold mu.
func (s *Subscriber) next() (contract.Delivery, bool) {
	t := s.broker.topics[s.topic]
	for i := 0; i < len(s.assigned); i++ {
		p := s.assigned[(s.cursor+i)%len(s.assigned)]
		position := s.positions[p]
		if position >= int64(len(t.partitions[p])) {
			continue
		}
		r := t.partitions[p][position]
		s.positions[p] = position + 1
		s.cursor = (s.cursor + i + 1) % len(s.assigned)
		return contract.Delivery{
			Topic:     s.topic,
			Partition: p,
			Offset:    position,
			Key:       r.key,
			Value:     r.value,
		}, true
	}
	return contract.Delivery{}, false
}

// Commit marks the delivery and everything before it on its partition as processed.
func (s *Subscriber) Commit(_ context.Context, delivery contract.Delivery) error {
	b := s.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return errors.ErrSubscriberClosed
	}
	if !slices.Contains(s.assigned, delivery.Partition) {
		return fmt.Errorf("%w: partition %d", errors.ErrNotAssigned, delivery.Partition)
	}
	g := b.topics[s.topic].groups[s.groupID]
	if next := delivery.Offset + 1; next > g.committed[delivery.Partition] {
		g.committed[delivery.Partition] = next
	}
	return nil
}

// Close leaves the group. Its partitions move to the remaining members,
// which resume from the last committed offsets.
func (s *Subscriber) Close() error {
	b := s.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	g := b.topics[s.topic].groups[s.groupID]
	g.members = slices.DeleteFunc(g.members, func(m *Subscriber) bool { return m == s })
	b.rebalance(g)
	return nil
}

// Assigned returns a copy of the partitions owned by this member.
func (s *Subscriber) Assigned() []int {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	return slices.Clone(s.assigned)
}
