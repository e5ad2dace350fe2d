package liveevents

import (
	"errors"
	"strings"
	"sync"
)

const (
	SourceDevice = "device"
	SourceSystem = "system"
)

const (
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16
)

var (
	ErrHubUnavailable = errors.New("hub_unavailable")
	ErrInvalidRoom    = errors.New("invalid_room")
)

// LiveEvent is a recorded reading as pushed to dashboard streams.
type LiveEvent struct {
	ReadingID  string  `json:"reading_id"`
	RoomID     string  `json:"room_id"`
	Watts      float64 `json:"watts"`
	KWh        string  `json:"kwh"`
	RecordedAt string  `json:"recorded_at"`
	Source     string  `json:"source"`
}

// Hub fans readings out to per-room subscribers. Each room keeps a small ring
// of recent events that new subscribers receive first.
type Hub struct {
	mu               sync.RWMutex
	streams          map[string]*stream
	bufferSize       int
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	buffer []LiveEvent
	subs   map[uint64]chan LiveEvent
	nextID uint64
}

type Subscription struct {
	hub    *Hub
	roomID string
	id     uint64
	ch     chan LiveEvent
	once   sync.Once
}

func NewHub() *Hub {
	return NewHubWithSize(DefaultBufferSize, DefaultSubscriberBuffer)
}

func NewHubWithSize(bufferSize, subscriberBuffer int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if subscriberBuffer <= 0 {
		subscriberBuffer = DefaultSubscriberBuffer
	}
	return &Hub{
		streams:          make(map[string]*stream),
		bufferSize:       bufferSize,
		subscriberBuffer: subscriberBuffer,
	}
}

func (h *Hub) Publish(roomID string, event LiveEvent) {
	if h == nil {
		return
	}
	key := strings.TrimSpace(roomID)
	if key == "" {
		return
	}
	stream := h.ensureStream(key)

	stream.mu.Lock()
	stream.buffer = append(stream.buffer, event)
	if len(stream.buffer) > h.bufferSize {
		stream.buffer = stream.buffer[len(stream.buffer)-h.bufferSize:]
	}
	// Sends never block; a slow subscriber misses events instead of stalling ingest.
	for _, ch := range stream.subs {
		select {
		case ch <- event:
		default:
		}
	}
	stream.mu.Unlock()
}

func (h *Hub) Subscribe(roomID string) (*Subscription, []LiveEvent, error) {
	if h == nil {
		return nil, nil, ErrHubUnavailable
	}
	key := strings.TrimSpace(roomID)
	if key == "" {
		return nil, nil, ErrInvalidRoom
	}

	stream := h.ensureStream(key)
	stream.mu.Lock()
	if stream.subs == nil {
		stream.subs = make(map[uint64]chan LiveEvent)
	}
	id := stream.nextID
	stream.nextID++
	ch := make(chan LiveEvent, h.subscriberBuffer)
	stream.subs[id] = ch
	buffer := append([]LiveEvent(nil), stream.buffer...)
	stream.mu.Unlock()

	return &Subscription{
		hub:    h,
		roomID: key,
		id:     id,
		ch:     ch,
	}, buffer, nil
}

func (h *Hub) ensureStream(roomID string) *stream {
	h.mu.RLock()
	current := h.streams[roomID]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.streams[roomID]
	if current == nil {
		current = &stream{subs: make(map[uint64]chan LiveEvent)}
		h.streams[roomID] = current
	}
	return current
}

// unsubscribe detaches the subscriber. The stream and its ring stay so the
// next subscriber still sees recent readings; there is one stream per room.
func (h *Hub) unsubscribe(roomID string, id uint64) {
	if h == nil {
		return
	}
	h.mu.RLock()
	stream := h.streams[roomID]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	if ch, ok := stream.subs[id]; ok {
		delete(stream.subs, id)
		close(ch)
	}
	stream.mu.Unlock()
}

// Recent returns a copy of the buffered events of the room, oldest first.
func (h *Hub) Recent(roomID string) []LiveEvent {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	stream := h.streams[strings.TrimSpace(roomID)]
	h.mu.RUnlock()
	if stream == nil {
		return nil
	}
	stream.mu.Lock()
	defer stream.mu.Unlock()
	return append([]LiveEvent(nil), stream.buffer...)
}

func (s *Subscription) Events() <-chan LiveEvent {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.roomID, s.id)
	})
}
