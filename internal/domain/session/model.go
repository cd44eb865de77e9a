package session

import "time"

// MessageKind classifies a chat entry
type MessageKind string

const (
	KindPlayer   MessageKind = "player"
	KindNarrator MessageKind = "narrator"
	KindSystem   MessageKind = "system"
	KindOOC      MessageKind = "ooc"
)

// Valid reports whether k is a known kind.
func (k MessageKind) Valid() bool {
	switch k {
	case KindPlayer, KindNarrator, KindSystem, KindOOC:
		return true
	}
	return false
}

// LogKind selects one of the two bounded message logs
type LogKind int

const (
	ChatLog LogKind = iota
	OOCLog
)

func (l LogKind) String() string {
	if l == OOCLog {
		return "ooc"
	}
	return "chat"
}

// Message is an immutable chat entry
type Message struct {
	ID          int64       `json:"id"`
	Kind        MessageKind `json:"kind"`
	Text        string      `json:"text"`
	Author      string      `json:"author,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
	CharacterID string      `json:"characterId,omitempty"`
	Round       int         `json:"round,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Character is a roster entry. Fields outside the known set are kept in Extra
// and serialized inline.
type Character struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Species  string         `json:"species,omitempty"`
	Location string         `json:"location,omitempty"`
	HP       float64        `json:"hp"`
	MaxHP    float64        `json:"maxHp"`
	Extra    map[string]any `json:"-"`
}

// NPC is a bestiary or scene entry controlled by the game master
type NPC struct {
	Name     string         `json:"name"`
	Species  string         `json:"species,omitempty"`
	Location string         `json:"location,omitempty"`
	HP       float64        `json:"hp,omitempty"`
	MaxHP    float64        `json:"maxHp,omitempty"`
	Extra    map[string]any `json:"-"`
}

// Clock is the in-fiction time
type Clock struct {
	Date  time.Time `json:"date"`
	Round int       `json:"round"`
}

// Session is one roleplay instance
type Session struct {
	Title    string           `json:"title"`
	Players  []Character      `json:"players"`
	NPCs     []NPC            `json:"npcs"`
	Bestiary map[string][]NPC `json:"bestiary"`
	Clock    Clock            `json:"clock"`
	Extra    map[string]any   `json:"-"`
}

// TurnSystem tracks strict turn order across the roster
type TurnSystem struct {
	Enabled         bool  `json:"enabled"`
	CurrentTurn     int   `json:"currentTurn"`
	RoundNumber     int   `json:"roundNumber"`
	PlayedThisRound []int `json:"playedThisRound"`
}

// HasPlayed reports whether index already acted this round.
func (t *TurnSystem) HasPlayed(index int) bool {
	for _, played := range t.PlayedThisRound {
		if played == index {
			return true
		}
	}
	return false
}

// Bundle is the full durable state: every session plus the shared logs,
// turn state and clock.
type Bundle struct {
	Sessions map[string]*Session `json:"sessionsById"`
	Current  string              `json:"currentSession"`
	Chat     []Message           `json:"chatLog"`
	OOC      []Message           `json:"oocLog"`
	Turns    TurnSystem          `json:"turnSystem"`
	Clock    Clock               `json:"clock"`
}

// Default bundle values
const (
	DefaultSessionKey   = "default"
	DefaultSessionTitle = "default"
	DefaultMaxChat      = 500
	DefaultMaxOOC       = 200
)

// DefaultFactions seeds the bestiary of a new session.
var DefaultFactions = []string{"Shinigami", "Hollow", "Humans"}

// Epoch is the in-fiction start time of a new session.
var Epoch = time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC)

// DefaultTurnSystem returns the initial turn state.
func DefaultTurnSystem() TurnSystem {
	return TurnSystem{
		Enabled:         true,
		CurrentTurn:     0,
		RoundNumber:     1,
		PlayedThisRound: []int{},
	}
}

// DefaultClock returns the initial clock.
func DefaultClock() Clock {
	return Clock{Date: Epoch, Round: 1}
}

// NewSession returns an empty session with the default factions.
func NewSession(title string) *Session {
	bestiary := make(map[string][]NPC, len(DefaultFactions))
	for _, faction := range DefaultFactions {
		bestiary[faction] = []NPC{}
	}
	return &Session{
		Title:    title,
		Players:  []Character{},
		NPCs:     []NPC{},
		Bestiary: bestiary,
		Clock:    DefaultClock(),
	}
}

// DefaultBundle returns the bundle used when nothing usable is stored.
func DefaultBundle() *Bundle {
	return &Bundle{
		Sessions: map[string]*Session{DefaultSessionKey: NewSession(DefaultSessionTitle)},
		Current:  DefaultSessionKey,
		Chat:     []Message{},
		OOC:      []Message{},
		Turns:    DefaultTurnSystem(),
		Clock:    DefaultClock(),
	}
}
