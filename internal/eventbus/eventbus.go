// Package eventbus fans a walletsync.Manager's Event stream out to
// multiple subscribers, batching deliveries on a fixed tick with
// buffered-channel backpressure per subscriber.
package eventbus

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wildwes357/walletsyncd/internal/walletsync"
)

const (
	subscriberBufferSize = 256
	batchInterval        = 5 * time.Millisecond
	maxBatchSize         = 64
)

type batchedPublish struct {
	event   walletsync.Event
	clients []chan walletsync.Event
}

// Bus fans out walletsync.Event values published on it to every
// currently-subscribed channel.
type Bus struct {
	subs      map[chan walletsync.Event]struct{}
	mu        sync.RWMutex
	logger    *zap.Logger
	batchChan chan batchedPublish
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// New creates a Bus and starts its batching worker.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		subs:      make(map[chan walletsync.Event]struct{}),
		logger:    logger,
		batchChan: make(chan batchedPublish, 1000),
		stopChan:  make(chan struct{}),
	}
	b.wg.Add(1)
	go b.fanOutBatcher()
	return b
}

// Subscribe returns a new channel receiving every event published
// after this call.
func (b *Bus) Subscribe() <-chan walletsync.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan walletsync.Event, subscriberBufferSize)
	b.subs[ch] = struct{}{}
	b.logger.Debug("new event subscriber", zap.Int("totalSubscribers", len(b.subs)))
	return ch
}

// Unsubscribe removes and closes ch.
func (b *Bus) Unsubscribe(ch <-chan walletsync.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for subCh := range b.subs {
		if subCh == ch {
			delete(b.subs, subCh)
			close(subCh)
			b.logger.Debug("event subscriber removed", zap.Int("remainingSubscribers", len(b.subs)))
			return
		}
	}
}

// Publish is suitable as a walletsync.EventCallback: hand it directly
// to NewAPIManager/NewPeerManager's OnEvent field.
func (b *Bus) Publish(ev walletsync.Event) {
	b.mu.RLock()
	if len(b.subs) == 0 {
		b.mu.RUnlock()
		return
	}
	clients := make([]chan walletsync.Event, 0, len(b.subs))
	for ch := range b.subs {
		clients = append(clients, ch)
	}
	b.mu.RUnlock()

	select {
	case b.batchChan <- batchedPublish{event: ev, clients: clients}:
	default:
		b.logger.Warn("event batch channel full, dropping publish", zap.Stringer("kind", ev.Kind))
	}
}

func (b *Bus) fanOutBatcher() {
	defer b.wg.Done()

	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	var pending []batchedPublish

	for {
		select {
		case <-b.stopChan:
			b.flush(pending)
			return
		case p := <-b.batchChan:
			pending = append(pending, p)
			if len(pending) >= maxBatchSize {
				b.flush(pending)
				pending = pending[:0]
			}
		case <-ticker.C:
			if len(pending) > 0 {
				b.flush(pending)
				pending = pending[:0]
			}
		}
	}
}

// flush delivers every pending publish to its subscriber snapshot,
// overwriting the oldest buffered event rather than dropping the new
// one when a subscriber's channel is full: sync events are rare and a
// slow subscriber cares most about the latest state.
func (b *Bus) flush(pending []batchedPublish) {
	for _, p := range pending {
		for _, ch := range p.clients {
			select {
			case ch <- p.event:
			default:
				select {
				case <-ch:
					select {
					case ch <- p.event:
					default:
					}
				default:
				}
			}
		}
	}
}

// Close stops the batching worker, flushing anything pending. batchChan
// is left open so a racing Publish cannot panic on a closed channel; it
// becomes garbage with the Bus.
func (b *Bus) Close() {
	close(b.stopChan)
	b.wg.Wait()
}
