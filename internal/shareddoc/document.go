package shareddoc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidActorID indicates that a document actor identifier is invalid.
	ErrInvalidActorID = errors.New("shareddoc: invalid actor id")
)

// Document is an in-memory shared document: a tree of keyed maps and ordered
// lists with per-key last-writer-wins merge semantics. Local writes are
// visible immediately; remote writes arrive through MergeValue and converge
// by (timestamp, actor id) ordering. All observers receive a single change
// notification per mutation, never a diff.
type Document struct {
	mu          sync.RWMutex
	actorID     string
	clock       func() time.Time
	root        *MapNode
	subscribers map[int64]func()
	nextSubID   int64
}

// DocumentConfig describes the inputs required to build a Document.
type DocumentConfig struct {
	ActorID string
	Clock   func() time.Time
}

// NewDocument constructs a Document. A missing actor id is replaced with a
// freshly issued UUIDv7; a missing clock falls back to time.Now.
func NewDocument(cfg DocumentConfig) (*Document, error) {
	actorID := cfg.ActorID
	if actorID == "" {
		generated, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidActorID, err)
		}
		actorID = generated.String()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	document := &Document{
		actorID:     actorID,
		clock:       clock,
		subscribers: make(map[int64]func()),
	}
	document.root = newMapNode(document)
	return document, nil
}

// ActorID returns the globally unique identifier of the local client.
func (document *Document) ActorID() string {
	return document.actorID
}

// Root returns the document's top-level keyed map.
func (document *Document) Root() *MapNode {
	return document.root
}

// Subscription is a handle for an active change observer. Close is mandatory
// on scope exit and is safe to call more than once.
type Subscription struct {
	id       int64
	document *Document
	once     sync.Once
}

// Close detaches the observer from the document.
func (subscription *Subscription) Close() {
	if subscription == nil || subscription.document == nil {
		return
	}
	subscription.once.Do(func() {
		subscription.document.mu.Lock()
		delete(subscription.document.subscribers, subscription.id)
		subscription.document.mu.Unlock()
	})
}

// Observe registers a deep-change handler fired after every mutation anywhere
// in the document tree.
func (document *Document) Observe(handler func()) *Subscription {
	if handler == nil {
		return &Subscription{}
	}
	document.mu.Lock()
	document.nextSubID++
	id := document.nextSubID
	document.subscribers[id] = handler
	document.mu.Unlock()
	return &Subscription{id: id, document: document}
}

func (document *Document) notify() {
	document.mu.RLock()
	handlers := make([]func(), 0, len(document.subscribers))
	for _, handler := range document.subscribers {
		handlers = append(handlers, handler)
	}
	document.mu.RUnlock()
	for _, handler := range handlers {
		handler()
	}
}

func (document *Document) stamp() int64 {
	return document.clock().UTC().UnixMicro()
}

type mapEntry struct {
	value     any
	updatedAt int64
	actorID   string
}

// MapNode is a keyed map inside a Document. Values are scalars, nested
// MapNodes, or ListNodes.
type MapNode struct {
	document *Document
	entries  map[string]mapEntry
}

func newMapNode(document *Document) *MapNode {
	return &MapNode{document: document, entries: make(map[string]mapEntry)}
}

// Get returns the raw value stored under key.
func (node *MapNode) Get(key string) (any, bool) {
	if node == nil {
		return nil, false
	}
	node.document.mu.RLock()
	defer node.document.mu.RUnlock()
	entry, ok := node.entries[key]
	if !ok {
		return nil, false
	}
	return entry.value, true
}

// Keys returns the set of keys present in the map, in unspecified order.
func (node *MapNode) Keys() []string {
	if node == nil {
		return nil
	}
	node.document.mu.RLock()
	defer node.document.mu.RUnlock()
	keys := make([]string, 0, len(node.entries))
	for key := range node.entries {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of keys in the map.
func (node *MapNode) Len() int {
	if node == nil {
		return 0
	}
	node.document.mu.RLock()
	defer node.document.mu.RUnlock()
	return len(node.entries)
}

// Set writes a local value under key, stamped with the local actor and clock.
func (node *MapNode) Set(key string, value any) {
	if node == nil {
		return
	}
	node.document.mu.Lock()
	node.entries[key] = mapEntry{
		value:     value,
		updatedAt: node.document.stamp(),
		actorID:   node.document.actorID,
	}
	node.document.mu.Unlock()
	node.document.notify()
}

// MergeValue applies a remote write under last-writer-wins ordering: the
// higher timestamp wins, ties break on the lexically greater actor id.
func (node *MapNode) MergeValue(key string, value any, updatedAt int64, actorID string) {
	if node == nil {
		return
	}
	node.document.mu.Lock()
	existing, ok := node.entries[key]
	if ok && !remoteWins(existing, updatedAt, actorID) {
		node.document.mu.Unlock()
		return
	}
	node.entries[key] = mapEntry{value: value, updatedAt: updatedAt, actorID: actorID}
	node.document.mu.Unlock()
	node.document.notify()
}

func remoteWins(existing mapEntry, updatedAt int64, actorID string) bool {
	if updatedAt != existing.updatedAt {
		return updatedAt > existing.updatedAt
	}
	return actorID > existing.actorID
}

// Delete removes a key from the map.
func (node *MapNode) Delete(key string) {
	if node == nil {
		return
	}
	node.document.mu.Lock()
	_, ok := node.entries[key]
	if ok {
		delete(node.entries, key)
	}
	node.document.mu.Unlock()
	if ok {
		node.document.notify()
	}
}

// GetMap returns the nested map stored under key, or nil when absent or not a
// map.
func (node *MapNode) GetMap(key string) *MapNode {
	value, ok := node.Get(key)
	if !ok {
		return nil
	}
	nested, ok := value.(*MapNode)
	if !ok {
		return nil
	}
	return nested
}

// EnsureMap returns the nested map stored under key, creating it when absent
// or when a non-map value occupies the key.
func (node *MapNode) EnsureMap(key string) *MapNode {
	if node == nil {
		return nil
	}
	if nested := node.GetMap(key); nested != nil {
		return nested
	}
	nested := newMapNode(node.document)
	node.Set(key, nested)
	return nested
}

// GetList returns the list stored under key, or nil when absent or not a
// list.
func (node *MapNode) GetList(key string) *ListNode {
	value, ok := node.Get(key)
	if !ok {
		return nil
	}
	list, ok := value.(*ListNode)
	if !ok {
		return nil
	}
	return list
}

// EnsureList returns the list stored under key, creating it when absent or
// when a non-list value occupies the key.
func (node *MapNode) EnsureList(key string) *ListNode {
	if node == nil {
		return nil
	}
	if list := node.GetList(key); list != nil {
		return list
	}
	list := &ListNode{document: node.document}
	node.Set(key, list)
	return list
}

// ListNode is an ordered sequence inside a Document.
type ListNode struct {
	document *Document
	items    []any
}

// Len returns the number of items in the list.
func (list *ListNode) Len() int {
	if list == nil {
		return 0
	}
	list.document.mu.RLock()
	defer list.document.mu.RUnlock()
	return len(list.items)
}

// Values returns a copy of the list contents in order.
func (list *ListNode) Values() []any {
	if list == nil {
		return nil
	}
	list.document.mu.RLock()
	defer list.document.mu.RUnlock()
	values := make([]any, len(list.items))
	copy(values, list.items)
	return values
}

// Push appends a value to the end of the list.
func (list *ListNode) Push(value any) {
	if list == nil {
		return
	}
	list.document.mu.Lock()
	list.items = append(list.items, value)
	list.document.mu.Unlock()
	list.document.notify()
}

// Insert places a value at the given index, clamping out-of-range indexes to
// the list bounds.
func (list *ListNode) Insert(index int, value any) {
	if list == nil {
		return
	}
	list.document.mu.Lock()
	if index < 0 {
		index = 0
	}
	if index > len(list.items) {
		index = len(list.items)
	}
	list.items = append(list.items, nil)
	copy(list.items[index+1:], list.items[index:])
	list.items[index] = value
	list.document.mu.Unlock()
	list.document.notify()
}

// RemoveAt deletes the value at the given index; out-of-range indexes are
// ignored.
func (list *ListNode) RemoveAt(index int) {
	if list == nil {
		return
	}
	list.document.mu.Lock()
	if index < 0 || index >= len(list.items) {
		list.document.mu.Unlock()
		return
	}
	list.items = append(list.items[:index], list.items[index+1:]...)
	list.document.mu.Unlock()
	list.document.notify()
}

// Move relocates the value at fromIndex to toIndex; out-of-range indexes are
// ignored.
func (list *ListNode) Move(fromIndex, toIndex int) {
	if list == nil {
		return
	}
	list.document.mu.Lock()
	if fromIndex < 0 || fromIndex >= len(list.items) || toIndex < 0 || toIndex >= len(list.items) {
		list.document.mu.Unlock()
		return
	}
	value := list.items[fromIndex]
	list.items = append(list.items[:fromIndex], list.items[fromIndex+1:]...)
	list.items = append(list.items, nil)
	copy(list.items[toIndex+1:], list.items[toIndex:])
	list.items[toIndex] = value
	list.document.mu.Unlock()
	list.document.notify()
}

// IndexOf returns the first index holding a value equal to target, or -1.
func (list *ListNode) IndexOf(target any) int {
	if list == nil {
		return -1
	}
	list.document.mu.RLock()
	defer list.document.mu.RUnlock()
	for index, value := range list.items {
		if value == target {
			return index
		}
	}
	return -1
}
