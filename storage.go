package statedb

import (
	"maps"
	"slices"
	"sync"

	"github.com/pior/statedb/wire"
	"github.com/zeebo/xxh3"
)

// Messenger is the part of a Connection that Storage depends on.
type Messenger interface {
	Register(kind wire.ResponseKind, h Handler) (unregister func())
	Send(req *wire.Request) error
}

var _ Messenger = (*Connection)(nil)

// Entry is a cached value with its wire type.
type Entry struct {
	Value any
	Type  wire.DataType
}

type pendingWrite struct {
	fingerprint uint64 // xxh3 of <type u8><encoded value>, zero for deletes
	delete      bool
}

// Storage is a local mirror of the server's key-value state.
//
// The mirror only changes when the server confirms: a Value response upserts
// a key, a Deleted response removes it. Set and Delete send a request and
// return; their effect becomes visible once the confirmation has been
// dispatched by the receive loop.
//
// Values and types live in two maps guarded by one lock, so a key is always
// present in both or in neither.
type Storage struct {
	messenger Messenger
	codec     wire.Codec

	mu      sync.RWMutex
	values  map[string]any
	types   map[string]wire.DataType
	pending map[string]pendingWrite

	unregister []func()
}

// NewStorage creates an empty mirror and registers its Value, Deleted and
// Error handlers on m.
func NewStorage(m Messenger, codec wire.Codec) *Storage {
	s := &Storage{
		messenger: m,
		codec:     codec,
		values:    make(map[string]any),
		types:     make(map[string]wire.DataType),
		pending:   make(map[string]pendingWrite),
	}

	s.unregister = []func(){
		m.Register(wire.ResponseValue, s.onValue),
		m.Register(wire.ResponseDeleted, s.onDeleted),
		m.Register(wire.ResponseError, s.onError),
	}

	return s
}

// Detach removes the Storage handlers. The mirror stops tracking the server.
func (s *Storage) Detach() {
	for _, fn := range s.unregister {
		fn()
	}
	s.unregister = nil
}

// Get returns the cached value for key.
func (s *Storage) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	return v, ok
}

// GetWithType returns the cached value for key and its wire type.
func (s *Storage) GetWithType(key string) (any, wire.DataType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, 0, false
	}
	return v, s.types[key], true
}

// Type returns the wire type of the cached value for key.
func (s *Storage) Type(key string) (wire.DataType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.types[key]
	return t, ok
}

// Len returns the number of cached keys
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Keys returns the cached keys in sorted order
func (s *Storage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}

// Snapshot returns a copy of the mirror.
// Blob and BigInt values are shared with the cache and must not be modified.
func (s *Storage) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Entry, len(s.values))
	for k, v := range s.values {
		out[k] = Entry{Value: v, Type: s.types[k]}
	}
	return out
}

// Pending reports whether a write for key was sent and not confirmed yet.
func (s *Storage) Pending(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.pending[key]
	return ok
}

// Set asks the server to store value under key.
//
// The request is skipped when the mirror already holds an equal value (the
// type is not compared) and no Delete of key is in flight, or when the same
// value and type are already in flight for key. Use Assign to always send.
//
// t may be wire.AutoSuggest. Encoding errors are returned before anything is
// sent and leave the mirror untouched.
func (s *Storage) Set(key string, value any, t wire.DataType) error {
	return s.set(key, value, t, false)
}

// Assign is Set without the redundant-write check.
func (s *Storage) Assign(key string, value any, t wire.DataType) error {
	return s.set(key, value, t, true)
}

func (s *Storage) set(key string, value any, t wire.DataType, force bool) error {
	t, err := s.codec.Resolve(value, t)
	if err != nil {
		return err
	}

	encoded, err := s.codec.AppendValue([]byte{byte(t)}, value, t)
	if err != nil {
		return err
	}
	mark := pendingWrite{fingerprint: xxh3.Hash(encoded)}

	s.mu.Lock()
	if !force {
		p, inFlight := s.pending[key]
		// a cached value about to be deleted does not count
		if cur, ok := s.values[key]; ok && !p.delete && wire.Equal(cur, value) {
			s.mu.Unlock()
			return nil
		}
		if inFlight && p == mark {
			s.mu.Unlock()
			return nil
		}
	}
	s.pending[key] = mark
	s.mu.Unlock()

	return s.send(key, mark, wire.NewSetRequest(key, value, t))
}

// Delete asks the server to remove key. The mirror keeps the key until the
// Deleted confirmation arrives.
func (s *Storage) Delete(key string) error {
	mark := pendingWrite{delete: true}

	s.mu.Lock()
	s.pending[key] = mark
	s.mu.Unlock()

	return s.send(key, mark, wire.NewRequest(wire.RequestDelete, key))
}

// RequestValue asks the server for the current value of key. The answer
// updates the mirror like any Value response; a missing key comes back as an
// Error response.
func (s *Storage) RequestValue(key string) error {
	return s.messenger.Send(wire.NewRequest(wire.RequestGet, key))
}

// UpdateAll asks the server for every key it holds.
func (s *Storage) UpdateAll() error {
	return s.messenger.Send(wire.NewRequest(wire.RequestGetAll, ""))
}

// send drops the pending mark again when the request could not be sent
func (s *Storage) send(key string, mark pendingWrite, req *wire.Request) error {
	err := s.messenger.Send(req)
	if err != nil {
		s.mu.Lock()
		if s.pending[key] == mark {
			delete(s.pending, key)
		}
		s.mu.Unlock()
	}
	return err
}

func (s *Storage) onValue(resp *wire.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[resp.Key] = resp.Value
	s.types[resp.Key] = resp.Type
	if !s.pending[resp.Key].delete {
		delete(s.pending, resp.Key)
	}
}

func (s *Storage) onDeleted(resp *wire.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, resp.Key)
	delete(s.types, resp.Key)
	delete(s.pending, resp.Key)
}

// onError forgets every pending write: errors carry no key, so the failed
// write cannot be told apart from the others.
func (s *Storage) onError(*wire.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.pending)
}
