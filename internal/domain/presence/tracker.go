package presence

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxNameLength caps display names, in characters.
	MaxNameLength = 30
	// DefaultName is used when a participant joins without a usable name.
	DefaultName = "Visitor"
)

// Entry is one connected participant.
type Entry struct {
	ConnectionID string    `json:"connectionId"`
	DisplayName  string    `json:"displayName"`
	CharacterID  string    `json:"characterId,omitempty"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Tracker records who is connected, in join order. It is not safe for
// concurrent use.
type Tracker struct {
	entries []Entry
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// SanitizeName trims and truncates a display name, falling back to DefaultName.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
	}
	if name == "" {
		return DefaultName
	}
	return name
}

// Join registers a connection. A participant already present under the same
// display name is rebound to the new connection instead of duplicated.
func (t *Tracker) Join(connID, name, characterID string) Entry {
	name = SanitizeName(name)
	if i := t.indexOfConn(connID); i >= 0 {
		t.entries[i].DisplayName = name
		t.entries[i].CharacterID = characterID
		return t.entries[i]
	}
	for i := range t.entries {
		if t.entries[i].DisplayName == name {
			t.entries[i].ConnectionID = connID
			t.entries[i].CharacterID = characterID
			return t.entries[i]
		}
	}
	e := Entry{
		ConnectionID: connID,
		DisplayName:  name,
		CharacterID:  characterID,
		JoinedAt:     t.now().UTC(),
	}
	t.entries = append(t.entries, e)
	return e
}

// Select sets the character a connection plays; an empty id clears it.
func (t *Tracker) Select(connID, characterID string) bool {
	i := t.indexOfConn(connID)
	if i < 0 {
		return false
	}
	t.entries[i].CharacterID = characterID
	return true
}

// Leave removes the entry bound to connID.
func (t *Tracker) Leave(connID string) (Entry, bool) {
	i := t.indexOfConn(connID)
	if i < 0 {
		return Entry{}, false
	}
	e := t.entries[i]
	t.entries = append(t.entries[:i:i], t.entries[i+1:]...)
	return e, true
}

// Lookup returns the entry bound to connID.
func (t *Tracker) Lookup(connID string) (Entry, bool) {
	if i := t.indexOfConn(connID); i >= 0 {
		return t.entries[i], true
	}
	return Entry{}, false
}

// ForgetCharacter clears every selection of characterID and returns how many
// entries changed.
func (t *Tracker) ForgetCharacter(characterID string) int {
	if characterID == "" {
		return 0
	}
	n := 0
	for i := range t.entries {
		if t.entries[i].CharacterID == characterID {
			t.entries[i].CharacterID = ""
			n++
		}
	}
	return n
}

// List returns a copy of all entries in join order.
func (t *Tracker) List() []Entry {
	return append([]Entry{}, t.entries...)
}

// Len returns the number of connected participants.
func (t *Tracker) Len() int { return len(t.entries) }

func (t *Tracker) indexOfConn(connID string) int {
	for i := range t.entries {
		if t.entries[i].ConnectionID == connID {
			return i
		}
	}
	return -1
}
