package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"storefront/pkg/log"
)

// MemoryQueue memory-based queue implementation. Subscribers of the same
// topic compete for messages.
type MemoryQueue struct {
	topics      map[string]chan []byte
	config      *MemoryQueueConfig
	mu          sync.Mutex
	closed      bool
	done        chan struct{}
	wg          sync.WaitGroup
	subscribers int

	sent     atomic.Int64
	received atomic.Int64
	failed   atomic.Int64
}

// MemoryQueueConfig memory queue configuration
type MemoryQueueConfig struct {
	BufferSize int           `json:"buffer_size"`
	Timeout    time.Duration `json:"timeout"`
}

// NewMemoryQueue creates a new memory queue instance
func NewMemoryQueue(config *MemoryQueueConfig) *MemoryQueue {
	if config == nil {
		config = &MemoryQueueConfig{}
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	return &MemoryQueue{
		topics: make(map[string]chan []byte),
		config: config,
		done:   make(chan struct{}),
	}
}

func (mq *MemoryQueue) topic(name string) (chan []byte, error) {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.closed {
		return nil, ErrQueueClosed
	}

	ch, ok := mq.topics[name]
	if !ok {
		ch = make(chan []byte, mq.config.BufferSize)
		mq.topics[name] = ch
	}
	return ch, nil
}

// Publish publishes a message to the queue
func (mq *MemoryQueue) Publish(ctx context.Context, topic string, message []byte) error {
	ch, err := mq.topic(topic)
	if err != nil {
		return err
	}

	timer := time.NewTimer(mq.config.Timeout)
	defer timer.Stop()

	select {
	case ch <- message:
		mq.sent.Add(1)
		return nil
	case <-mq.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPublishTimeout
	}
}

// Subscribe starts a consumer goroutine for topic. It stops when ctx is
// cancelled or the queue is closed.
func (mq *MemoryQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	ch, err := mq.topic(topic)
	if err != nil {
		return err
	}

	mq.mu.Lock()
	mq.subscribers++
	mq.wg.Add(1)
	mq.mu.Unlock()

	go func() {
		defer mq.wg.Done()
		for {
			select {
			case message := <-ch:
				mq.received.Add(1)
				if err := handler(ctx, topic, message); err != nil {
					mq.failed.Add(1)
					log.WithError(err).WithField("topic", topic).Warn("Queue handler failed")
				}
			case <-ctx.Done():
				return
			case <-mq.done:
				return
			}
		}
	}()

	return nil
}

// Close stops every consumer and waits for them to return. Messages still
// buffered are dropped.
func (mq *MemoryQueue) Close() error {
	mq.mu.Lock()
	if mq.closed {
		mq.mu.Unlock()
		return nil
	}
	mq.closed = true
	close(mq.done)
	mq.mu.Unlock()

	mq.wg.Wait()
	return nil
}

// Health checks the health of the queue
func (mq *MemoryQueue) Health() error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.closed {
		return ErrQueueClosed
	}
	return nil
}

// GetStats returns queue statistics
func (mq *MemoryQueue) GetStats() *QueueStats {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	return &QueueStats{
		Topics:       len(mq.topics),
		Subscribers:  mq.subscribers,
		Connected:    !mq.closed,
		MessagesSent: mq.sent.Load(),
		MessagesRecv: mq.received.Load(),
		HandlerErrs:  mq.failed.Load(),
	}
}
