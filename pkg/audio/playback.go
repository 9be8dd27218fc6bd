package audio

import (
	"context"
	"log/slog"
	"sync"
)

// Item is one decoded chunk of playable audio.
type Item struct {
	// Samples is mono PCM16 audio.
	Samples []int16

	// SampleRate is the rate in Hz at which Samples were synthesised.
	SampleRate int
}

// Player renders one Item to completion. Play blocks until the item has
// fully played, the item fails, or ctx is cancelled. Implementations live
// in audio/device; tests use fakes.
type Player interface {
	Play(ctx context.Context, item *Item) error
}

// Queue plays items strictly in arrival order, at most one at a time.
// A failing item is dropped and the next one starts; playback order is
// never reshuffled. Clear interrupts the in-flight item and discards the
// backlog, which is how a session teardown silences the speaker.
//
// The dispatch loop is a single goroutine owned by the Queue; Enqueue and
// Clear only touch state under the mutex and nudge the loop through
// channels.
type Queue struct {
	player Player

	mu      sync.Mutex
	pending []*Item
	playing bool
	closed  bool

	notify        chan struct{}
	done          chan struct{}
	cancelPlaying chan struct{}

	wg sync.WaitGroup
}

// NewQueue creates a Queue and starts its dispatch loop.
func NewQueue(player Player) *Queue {
	q := &Queue{
		player:        player,
		notify:        make(chan struct{}, 1),
		done:          make(chan struct{}),
		cancelPlaying: make(chan struct{}, 1),
	}
	q.wg.Add(1)
	go q.dispatch()
	return q
}

// Enqueue appends an item to the tail of the queue. Items enqueued after
// Close are discarded.
func (q *Queue) Enqueue(item *Item) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, item)
	q.mu.Unlock()

	q.nudge()
}

// Clear discards every pending item and interrupts the one currently
// playing, if any. Safe to call at any time, including when the queue is
// already empty.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = nil
	if !q.playing {
		return
	}
	// Sent under the lock: playing cannot flip between the check and the
	// send, so the token always targets the item in flight right now,
	// never one dequeued later.
	select {
	case q.cancelPlaying <- struct{}{}:
	default:
	}
}

// Playing reports whether an item is currently being rendered.
func (q *Queue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

// Len returns the number of pending items, excluding the one playing.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops the dispatch loop, interrupting any in-flight item, and
// waits for it to exit. Pending items are discarded. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.pending = nil
	q.mu.Unlock()

	close(q.done)
	select {
	case q.cancelPlaying <- struct{}{}:
	default:
	}
	q.wg.Wait()
}

func (q *Queue) nudge() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) dispatch() {
	defer q.wg.Done()

	for {
		item := q.dequeue()
		if item == nil {
			select {
			case <-q.notify:
				continue
			case <-q.done:
				return
			}
		}

		q.play(item)

		select {
		case <-q.done:
			return
		default:
		}
	}
}

// dequeue pops the head item and marks the queue playing, or returns nil
// when nothing is pending.
func (q *Queue) dequeue() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}

	// Drop a cancellation left over from a Clear whose target finished
	// before the token was consumed. Done under the lock, before playing
	// flips, so a concurrent Clear aimed at the new item cannot be eaten.
	select {
	case <-q.cancelPlaying:
	default:
	}

	item := q.pending[0]
	q.pending = q.pending[1:]
	q.playing = true
	return item
}

// play renders one item, honoring cancelPlaying and done by cancelling the
// player's context. Errors drop the item; the loop advances either way.
func (q *Queue) play(item *Item) {
	defer func() {
		q.mu.Lock()
		q.playing = false
		q.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupted := make(chan struct{})
	go func() {
		select {
		case <-q.cancelPlaying:
			cancel()
		case <-q.done:
			cancel()
		case <-interrupted:
		}
	}()

	err := q.player.Play(ctx, item)
	close(interrupted)
	if err != nil && ctx.Err() == nil {
		slog.Warn("playback: item failed, advancing", "err", err)
	}
}
