package notify

import (
	"sync"

	"github.com/charmbracelet/log"
)

// QueueSize is the bounded per-(subscriber,group) queue depth (spec §4.2:
// "implementation-defined; >= 64").
const QueueSize = 64

type membershipKey struct {
	subscriberID string
	groupID      string
}

// member owns one (subscriber, group) membership: a FIFO queue and the
// goroutine draining it into the subscriber's sink, so ordering is
// preserved per pair without serializing delivery across pairs.
type member struct {
	queue chan Event
	sink  func(Event)
	done  chan struct{}
}

// Bus is the Notification Bus (B): typed pub/sub with per-job groups and a
// global broadcast group, best-effort delivery, and drop-oldest
// back-pressure per subscriber. No teacher precedent — the teacher only
// logs — so the core is new, built around channels in the idiom the rest
// of the pack uses for background work.
type Bus struct {
	mu      sync.RWMutex
	members map[membershipKey]*member
	byGroup map[string]map[membershipKey]*member
}

func NewBus() *Bus {
	return &Bus{
		members: make(map[membershipKey]*member),
		byGroup: make(map[string]map[membershipKey]*member),
	}
}

// Join registers subscriberID into groupID; events published to groupID
// from now on are delivered, in order, to sink. Joining the same pair
// twice replaces the prior membership (it is closed first).
func (b *Bus) Join(subscriberID, groupID string, sink func(Event)) {
	key := membershipKey{subscriberID, groupID}

	b.mu.Lock()
	if old, ok := b.members[key]; ok {
		b.removeLocked(key, old)
	}
	m := &member{
		queue: make(chan Event, QueueSize),
		sink:  sink,
		done:  make(chan struct{}),
	}
	b.members[key] = m
	if b.byGroup[groupID] == nil {
		b.byGroup[groupID] = make(map[membershipKey]*member)
	}
	b.byGroup[groupID][key] = m
	b.mu.Unlock()

	go m.run()
}

// Leave removes exactly the (subscriberID, groupID) membership.
func (b *Bus) Leave(subscriberID, groupID string) {
	key := membershipKey{subscriberID, groupID}
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.members[key]; ok {
		b.removeLocked(key, m)
	}
}

// LeaveAll removes every membership for subscriberID, used when a
// connection (e.g. a WebSocket client) disconnects.
func (b *Bus) LeaveAll(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, m := range b.members {
		if key.subscriberID == subscriberID {
			b.removeLocked(key, m)
		}
	}
}

func (b *Bus) removeLocked(key membershipKey, m *member) {
	delete(b.members, key)
	if g := b.byGroup[key.groupID]; g != nil {
		delete(g, key)
		if len(g) == 0 {
			delete(b.byGroup, key.groupID)
		}
	}
	close(m.done)
}

// Publish delivers an event to every subscriber of groupID. A slow or
// stuck subscriber never blocks delivery to others: publication to each
// member's queue is non-blocking, dropping the oldest queued event for
// that member when its queue is full.
func (b *Bus) Publish(groupID string, kind Kind, payload interface{}) {
	ev := Event{Kind: kind, Group: groupID, Payload: payload}

	b.mu.RLock()
	members := make([]*member, 0, len(b.byGroup[groupID]))
	for _, m := range b.byGroup[groupID] {
		members = append(members, m)
	}
	b.mu.RUnlock()

	for _, m := range members {
		m.enqueue(ev)
	}
}

func (m *member) enqueue(ev Event) {
	select {
	case m.queue <- ev:
		return
	default:
	}
	select {
	case <-m.queue:
	default:
	}
	select {
	case m.queue <- ev:
	default:
	}
}

func (m *member) run() {
	for {
		select {
		case ev := <-m.queue:
			m.deliver(ev)
		case <-m.done:
			return
		}
	}
}

func (m *member) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("notify: subscriber sink panicked", "kind", ev.Kind, "group", ev.Group, "recover", r)
		}
	}()
	m.sink(ev)
}
