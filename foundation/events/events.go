// Package events fans out published messages to registered subscribers,
// such as the websocket connections of the simulated node.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// messageBuffer is how many messages a subscriber may fall behind before
// new messages are dropped for it.
const messageBuffer = 100

// Message is the envelope every subscriber receives.
type Message struct {
	Topic string    `json:"topic"`
	Time  time.Time `json:"time"`
	Data  any       `json:"data"`
}

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive messages.
type Events struct {
	m  map[string]chan string
	mu sync.RWMutex
}

// New constructs an events hub.
func New() *Events {
	return &Events{
		m: make(map[string]chan string),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used
// to receive messages.
func (evt *Events) Acquire(id string) chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if ch, exists := evt.m[id]; exists {
		return ch
	}

	evt.m[id] = make(chan string, messageBuffer)
	return evt.m[id]
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// Subscribers returns the number of registered channels.
func (evt *Events) Subscribers() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}

// Send signals a message to every registered channel. Send will not block
// waiting for a receiver on any given channel.
func (evt *Events) Send(s string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.m {
		select {
		case ch <- s:
		default:
		}
	}
}

// Publish wraps the value in a Message and sends it as JSON.
func (evt *Events) Publish(topic string, v any) {
	data, err := json.Marshal(Message{Topic: topic, Time: time.Now().UTC(), Data: v})
	if err != nil {
		data, _ = json.Marshal(Message{Topic: "error", Time: time.Now().UTC(), Data: err.Error()})
	}

	evt.Send(string(data))
}
