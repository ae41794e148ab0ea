package notify

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Broker carries live messages between API instances. Delivery is best effort.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

type Subscription interface {
	C() <-chan []byte
	Close() error
}

// RedisBroker uses Redis pub/sub, one channel per user.
type RedisBroker struct{ Redis *redis.Client }

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.Redis.Publish(ctx, channel, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := b.Redis.Subscribe(ctx, channel)
	// wait for the subscription to be confirmed so nothing published after
	// this call returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	s := &redisSub{ps: ps, out: make(chan []byte, 64), done: make(chan struct{})}
	go s.forward(ps.Channel())
	return s, nil
}

type redisSub struct {
	ps   *redis.PubSub
	out  chan []byte
	done chan struct{}
	once sync.Once
}

// forward copies messages until the pubsub ends or Close is called.
func (s *redisSub) forward(in <-chan *redis.Message) {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.out <- []byte(m.Payload):
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSub) C() <-chan []byte { return s.out }

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// LocalBroker fans out in process. Used by tests and single-node runs.
type LocalBroker struct {
	mu   sync.Mutex
	subs map[string]map[*localSub]struct{}
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: map[string]map[*localSub]struct{}{}}
}

func (b *LocalBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs[channel] {
		select {
		case s.ch <- payload:
		default:
			// slow reader; live delivery is not retried
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, channel string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &localSub{b: b, channel: channel, ch: make(chan []byte, 64)}
	if b.subs[channel] == nil {
		b.subs[channel] = map[*localSub]struct{}{}
	}
	b.subs[channel][s] = struct{}{}
	return s, nil
}

type localSub struct {
	b       *LocalBroker
	channel string
	ch      chan []byte
	once    sync.Once
}

func (s *localSub) C() <-chan []byte { return s.ch }

func (s *localSub) Close() error {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs[s.channel], s)
		if len(s.b.subs[s.channel]) == 0 {
			delete(s.b.subs, s.channel)
		}
		close(s.ch)
		s.b.mu.Unlock()
	})
	return nil
}
