// Package queue carries settings-sync messages from the api to the process
// that pushes them to the HR backend. The api drains an InMemory queue itself;
// with Redis the list is shared with cmd/worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list used when no key is configured.
const DefaultKey = "hrportal:settings-sync"

const (
	pollTimeout  = 5 * time.Second
	retryBackoff = time.Second
)

// Message is one queued unit of work. Type selects the handler.
type Message struct {
	Type string
	Body []byte
}

// Publisher enqueues messages.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Queue is implemented by both backends.
type Queue interface {
	Publisher
	Consume(ctx context.Context) (<-chan Message, error)
	Pending(ctx context.Context) (int64, error)
}

// InMemory is a bounded channel. Publish blocks while it is full.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a queue holding up to size messages.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel that is closed when ctx is done.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Pending is the number of buffered messages.
func (q *InMemory) Pending(context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}

// RedisQueue is a Redis list. Producers LPUSH and consumers BRPOP, so
// messages are delivered oldest first.
type RedisQueue struct {
	client redis.Cmdable
	key    string
}

// NewRedisQueue uses DefaultKey when key is empty.
func NewRedisQueue(client redis.Cmdable, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key}
}

// Key is the list the queue reads and writes.
func (q *RedisQueue) Key() string { return q.key }

func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	payload, err := encode(msg)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("queue: push to %s: %w", q.key, err)
	}
	return nil
}

// Consume polls the list until ctx is done. Redis errors are retried after a
// short backoff.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, pollTimeout, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					select {
					case <-time.After(retryBackoff):
					case <-ctx.Done():
						return
					}
				}
				continue
			}
			// res is [key, value]
			if len(res) != 2 {
				continue
			}
			select {
			case out <- decode(res[1]):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Pending is the length of the list.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: length of %s: %w", q.key, err)
	}
	return n, nil
}

type wireMessage struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body,omitempty"`
}

// encode stores a message as {"type":...,"body":...}. Body must be JSON.
func encode(msg Message) (string, error) {
	b, err := json.Marshal(wireMessage{Type: msg.Type, Body: msg.Body})
	if err != nil {
		return "", fmt.Errorf("queue: encode %s: %w", msg.Type, err)
	}
	return string(b), nil
}

// decode turns entries that are not wire messages into an untyped message so
// the consumer can report them.
func decode(s string) Message {
	var w wireMessage
	if err := json.Unmarshal([]byte(s), &w); err != nil || w.Type == "" {
		return Message{Body: []byte(s)}
	}
	return Message{Type: w.Type, Body: []byte(w.Body)}
}
