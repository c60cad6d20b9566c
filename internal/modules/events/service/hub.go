// Package events tells a device's open pages to re-render. Events are
// fire-and-forget: a device with no open socket simply misses them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TypeSessionChanged  = "session_changed"
	TypeBoardReloaded   = "board_reloaded"
	TypeSubmitSucceeded = "submit_succeeded"
	TypeSubmitFailed    = "submit_failed"
	TypeProfileChanged  = "notice_profile_changed"
)

type Event struct {
	Type     string    `json:"type"`
	Category string    `json:"category,omitempty"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

type Hub interface {
	Publish(ctx context.Context, deviceID string, ev Event) error
	// Subscribe returns the device's event stream and a function that
	// ends the subscription.
	Subscribe(ctx context.Context, deviceID string) (<-chan Event, func(), error)
}

func channel(deviceID string) string {
	return fmt.Sprintf("device_events:%s", deviceID)
}

type redisHub struct {
	rdb *redis.Client
}

// NewRedisHub fans events out through redis pub/sub so every server
// instance can reach the device's socket.
func NewRedisHub(rdb *redis.Client) Hub {
	return &redisHub{rdb: rdb}
}

func (h *redisHub) Publish(ctx context.Context, deviceID string, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, channel(deviceID), payload).Err()
}

func (h *redisHub) Subscribe(ctx context.Context, deviceID string) (<-chan Event, func(), error) {
	pubsub := h.rdb.Subscribe(ctx, channel(deviceID))

	// Wait for confirmation that subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", deviceID, err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[events] dropping bad payload on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case out <- ev:
			default:
			}
		}
	}()

	var once sync.Once
	return out, func() { once.Do(func() { pubsub.Close() }) }, nil
}

type memoryHub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

// NewMemoryHub delivers events within this process only.
func NewMemoryHub() Hub {
	return &memoryHub{subs: make(map[string]map[chan Event]struct{})}
}

func (h *memoryHub) Publish(_ context.Context, deviceID string, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[deviceID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (h *memoryHub) Subscribe(_ context.Context, deviceID string) (<-chan Event, func(), error) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	if h.subs[deviceID] == nil {
		h.subs[deviceID] = make(map[chan Event]struct{})
	}
	h.subs[deviceID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[deviceID], ch)
			if len(h.subs[deviceID]) == 0 {
				delete(h.subs, deviceID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}
