package engine

import (
	"sync"

	"github.com/Klingon-tech/klingnet-wallet/internal/ledger"
	"github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/google/uuid"
)

// Event is published on the bus. It is either *OperationEvent or
// *LedgerEvent.
type Event interface {
	event()
}

// OperationEvent reports a phase of an operation.
type OperationEvent struct {
	ID      uuid.UUID
	Kind    Kind
	Phase   Phase
	Payload any
	Err     error
}

// LedgerEvent reports one ledger mutation.
type LedgerEvent struct {
	Change ledger.Change
}

func (*OperationEvent) event() {}
func (*LedgerEvent) event()    {}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	onDrop func()
}

// NewBus creates an empty bus. onDrop, when not nil, is called for every
// delivery skipped on a full buffer.
func NewBus(onDrop func()) *Bus {
	return &Bus{subs: make(map[int]chan Event), onDrop: onDrop}
}

// Subscribe returns a channel of events and a function that cancels the
// subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Bus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			if b.onDrop != nil {
				b.onDrop()
			}
			log.Engine.Warn().Int("subscriber", id).Msg("Event subscriber too slow, dropping event")
		}
	}
}
