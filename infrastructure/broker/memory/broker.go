// Package memory is a single process event broker with partitions,
// consumer groups and committed offsets.
// Uncommitted deliveries are handed out again after a rebalance.
package memory

import (
	"chat-search/contract"
	"chat-search/domain/event"
	"chat-search/errors"
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
)

const DefaultPartitions = 4

var _ contract.EventPublisher = (*Broker)(nil)

type record struct {
	key   []byte
	value []byte
}

type group struct {
	committed []int64
	members   []*Subscriber
}

type topic struct {
	partitions [][]record
	groups     map[string]*group
}

// Broker is safe for concurrent use by publishers and subscribers.
type Broker struct {
	mu         sync.Mutex
	log        *slog.Logger
	partitions int
	topics     map[string]*topic
	notify     chan struct{}
	closed     bool
	nextMember int
}

func NewBroker(log *slog.Logger, partitions int) *Broker {
	if partitions < 1 {
		partitions = DefaultPartitions
	}
	return &Broker{
		log:        log,
		partitions: partitions,
		topics:     make(map[string]*topic),
		notify:     make(chan struct{}),
	}
}

// Partition maps a key onto a partition. Equal keys always land on the same one.
func (b *Broker) Partition(key []byte) int {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(b.partitions))
}

// Publish appends the event to its key's partition. Once it returns nil the event
// is visible to every group.
func (b *Broker) Publish(ctx context.Context, topicName string, evt event.MessageCreated) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := evt.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", evt.ID, err)
	}
	return b.Append(topicName, evt.Key(), payload)
}

// Append stores a raw payload, used for anything that is not a MessageCreated.
func (b *Broker) Append(topicName string, key, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("%w: publish to %s", errors.ErrBrokerClosed, topicName)
	}
	t := b.topic(topicName)
	p := b.Partition(key)
	t.partitions[p] = append(t.partitions[p], record{key: key, value: payload})
	b.broadcast()
	return nil
}

// Subscribe joins the group on the topic, rebalancing partitions across members.
func (b *Broker) Subscribe(topicName, groupID string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topic(topicName)
	g, ok := t.groups[groupID]
	if !ok {
		g = &group{committed: make([]int64, b.partitions)}
		t.groups[groupID] = g
	}
	b.nextMember++
	s := &Subscriber{
		broker:   b,
		topic:    topicName,
		groupID:  groupID,
		memberID: b.nextMember,
	}
	g.members = append(g.members, s)
	b.rebalance(g)
	b.log.Debug("Subscriber joined", "topic", topicName, "group", groupID, "member", s.memberID, "partitions", s.assigned)
	return s
}

// Lag is the number of records not yet committed by the group.
func (b *Broker) Lag(topicName, groupID string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[topicName]
	if !ok {
		return 0
	}
	var lag int64
	for p, records := range t.partitions {
		committed := int64(0)
		if g, ok := t.groups[groupID]; ok {
			committed = g.committed[p]
		}
		lag += int64(len(records)) - committed
	}
	return lag
}

// Close stops publishing and wakes every blocked subscriber.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.broadcast()
	}
	return nil
}

// Ping fails once the broker is closed.
func (b *Broker) Ping(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.ErrBrokerClosed
	}
	return nil
}

func (b *Broker) topic(name string) *topic {
	t, ok := b.topics[name]
	if !ok {
		t = &topic{
			partitions: make([][]record, b.partitions),
			groups:     make(map[string]*group),
		}
		b.topics[name] = t
	}
	return t
}

// rebalance gives each member a contiguous range of partitions, like the range assignor.
// Every member restarts from the committed offsets.
func (b *Broker) rebalance(g *group) {
	sort.Slice(g.members, func(i, j int) bool { return g.members[i].memberID < g.members[j].memberID })
	n := len(g.members)
	for i, m := range g.members {
		m.assigned = nil
		m.positions = make(map[int]int64)
		for p := 0; p < b.partitions; p++ {
			if p*n/b.partitions == i {
				m.assigned = append(m.assigned, p)
				m.positions[p] = g.committed[p]
			}
		}
		m.cursor = 0
	}
	b.broadcast()
}

// broadcast wakes every waiter. Callers hold mu.
func (b *Broker) broadcast() {
	close(b.notify)
	b.notify = make(chan struct{})
}
