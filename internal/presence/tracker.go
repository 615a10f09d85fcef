package presence

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Metadata is the JSON wire shape broadcast as a string field on each
// ephemeral awareness state.
type Metadata struct {
	UserName       string `json:"user_name"`
	CursorColor    string `json:"cursor_color"`
	SelectionColor string `json:"selection_color"`
	UserAvatar     string `json:"user_avatar"`
	UserUUID       string `json:"user_uuid,omitempty"`
}

// Selection is the raw cursor selection broadcast by a client. Resolving it
// against the document content tree belongs to the text-editing binding, not
// this tracker.
type Selection struct {
	AnchorPath   []int `json:"anchor_path"`
	AnchorOffset int   `json:"anchor_offset"`
	FocusPath    []int `json:"focus_path"`
	FocusOffset  int   `json:"focus_offset"`
}

// State is one client connection's ephemeral presence entry.
type State struct {
	ClientID     int64
	UID          string
	DeviceID     string
	MetadataJSON string
	Selection    *Selection
	Timestamp    int64
}

// identityKey collapses multiple connections from one logical user: uuid
// first, then uid, then device id.
func identityKey(state State, metadata Metadata) string {
	if metadata.UserUUID != "" {
		return metadata.UserUUID
	}
	if state.UID != "" {
		return state.UID
	}
	return state.DeviceID
}

// User is one deduplicated presence entry.
type User struct {
	Key       string
	ClientID  int64
	DeviceID  string
	Metadata  Metadata
	Timestamp int64
}

// Cursor is one remote cursor ready for rendering once its selection has
// been resolved.
type Cursor struct {
	User      User
	Selection Selection
	Ranges    any
}

// SelectionResolver maps raw selection coordinates onto renderable ranges
// against the current content tree. It is supplied by the editor binding; a
// false return drops the cursor for this pass.
type SelectionResolver func(Selection) (any, bool)

// Tracker merges the ephemeral per-client state multimap into deduplicated
// user and cursor views. It listens to a channel separate from the persisted
// document and holds no durable state.
type Tracker struct {
	mu            sync.RWMutex
	localDeviceID string
	states        map[int64]State
	subscribers   map[int64]chan struct{}
	nextSubID     int64
}

// TrackerConfig describes the inputs required to build a Tracker.
type TrackerConfig struct {
	LocalDeviceID string
}

// NewTracker constructs an empty presence tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{
		localDeviceID: cfg.LocalDeviceID,
		states:        make(map[int64]State),
		subscribers:   make(map[int64]chan struct{}),
	}
}

// Apply upserts one client's state and fires a single change notification.
func (tracker *Tracker) Apply(state State) {
	tracker.mu.Lock()
	tracker.states[state.ClientID] = state
	tracker.mu.Unlock()
	tracker.notify()
}

// Remove drops a departed client's state.
func (tracker *Tracker) Remove(clientID int64) {
	tracker.mu.Lock()
	_, ok := tracker.states[clientID]
	delete(tracker.states, clientID)
	tracker.mu.Unlock()
	if ok {
		tracker.notify()
	}
}

// Subscribe registers for change notifications. The returned cleanup must be
// called on scope exit; cancelling ctx also detaches the subscriber.
func (tracker *Tracker) Subscribe(ctx context.Context) (<-chan struct{}, func()) {
	stream := make(chan struct{}, 1)
	tracker.mu.Lock()
	tracker.nextSubID++
	id := tracker.nextSubID
	tracker.subscribers[id] = stream
	tracker.mu.Unlock()
	cleanup := func() {
		tracker.mu.Lock()
		delete(tracker.subscribers, id)
		tracker.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

func (tracker *Tracker) notify() {
	tracker.mu.RLock()
	streams := make([]chan struct{}, 0, len(tracker.subscribers))
	for _, stream := range tracker.subscribers {
		streams = append(streams, stream)
	}
	tracker.mu.RUnlock()
	for _, stream := range streams {
		select {
		case stream <- struct{}{}:
		default:
		}
	}
}

// Users returns every present user: parseable metadata only, deduplicated by
// identity key keeping the most recent entry, sorted descending by
// timestamp. A winning entry with an empty display name is dropped after the
// dedupe, so a newer anonymous connection hides the stale named one instead
// of resurrecting it.
func (tracker *Tracker) Users() []User {
	tracker.mu.RLock()
	states := make([]State, 0, len(tracker.states))
	for _, state := range tracker.states {
		states = append(states, state)
	}
	tracker.mu.RUnlock()

	byKey := make(map[string]User, len(states))
	for _, state := range states {
		metadata, ok := parseMetadata(state.MetadataJSON)
		if !ok {
			continue
		}
		user := User{
			Key:       identityKey(state, metadata),
			ClientID:  state.ClientID,
			DeviceID:  state.DeviceID,
			Metadata:  metadata,
			Timestamp: state.Timestamp,
		}
		if user.Key == "" {
			continue
		}
		existing, seen := byKey[user.Key]
		if !seen || user.Timestamp > existing.Timestamp {
			byKey[user.Key] = user
		}
	}

	users := make([]User, 0, len(byKey))
	for _, user := range byKey {
		if user.Metadata.UserName == "" {
			continue
		}
		users = append(users, user)
	}
	sort.SliceStable(users, func(left, right int) bool {
		if users[left].Timestamp != users[right].Timestamp {
			return users[left].Timestamp > users[right].Timestamp
		}
		return users[left].Key < users[right].Key
	})
	return users
}

// RemoteCursors returns the cursors of every other device: the local device
// is never a remote cursor, entries without a selection are skipped, and the
// resolver (once the content tree exists) turns coordinates into renderable
// ranges. A nil resolver leaves ranges unresolved.
func (tracker *Tracker) RemoteCursors(resolve SelectionResolver) []Cursor {
	tracker.mu.RLock()
	states := make([]State, 0, len(tracker.states))
	for _, state := range tracker.states {
		states = append(states, state)
	}
	localDeviceID := tracker.localDeviceID
	tracker.mu.RUnlock()

	byKey := make(map[string]Cursor, len(states))
	for _, state := range states {
		if state.DeviceID == localDeviceID {
			continue
		}
		if state.Selection == nil {
			continue
		}
		metadata, ok := parseMetadata(state.MetadataJSON)
		if !ok {
			continue
		}
		cursor := Cursor{
			User: User{
				Key:       identityKey(state, metadata),
				ClientID:  state.ClientID,
				DeviceID:  state.DeviceID,
				Metadata:  metadata,
				Timestamp: state.Timestamp,
			},
			Selection: *state.Selection,
		}
		if cursor.User.Key == "" {
			continue
		}
		if resolve != nil {
			ranges, resolved := resolve(cursor.Selection)
			if !resolved {
				continue
			}
			cursor.Ranges = ranges
		}
		existing, seen := byKey[cursor.User.Key]
		if !seen || cursor.User.Timestamp > existing.User.Timestamp {
			byKey[cursor.User.Key] = cursor
		}
	}

	cursors := make([]Cursor, 0, len(byKey))
	for _, cursor := range byKey {
		cursors = append(cursors, cursor)
	}
	sort.SliceStable(cursors, func(left, right int) bool {
		if cursors[left].User.Timestamp != cursors[right].User.Timestamp {
			return cursors[left].User.Timestamp > cursors[right].User.Timestamp
		}
		return cursors[left].User.Key < cursors[right].User.Key
	})
	return cursors
}

// parseMetadata rejects malformed payloads outright: a state with
// unparseable metadata is skipped, never defaulted.
func parseMetadata(raw string) (Metadata, bool) {
	if raw == "" {
		return Metadata{}, false
	}
	var metadata Metadata
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return Metadata{}, false
	}
	return metadata, true
}
