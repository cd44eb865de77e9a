package hub

import (
	"encoding/json"
	"time"

	"github.com/ganot/rpstage/internal/domain/presence"
	"github.com/ganot/rpstage/internal/domain/session"
)

// Event names sent to connections.
const (
	EventGameState       = "gameStateSnapshot"
	EventChatMessage     = "chatMessage"
	EventOOCMessage      = "oocMessage"
	EventPlayersUpdated  = "playersUpdated"
	EventTurnChanged     = "turnChanged"
	EventRPTimeUpdated   = "rpTimeUpdated"
	EventDataUpdated     = "dataUpdated"
	EventPlayerUpdated   = "playerUpdated"
	EventPlayerAdded     = "playerAdded"
	EventPlayerDeleted   = "playerDeleted"
	EventNPCUpdated      = "npcUpdated"
	EventBestiaryUpdated = "bestiaireUpdated"
	EventChatCleared     = "chatCleared"
	EventOOCCleared      = "oocCleared"
	EventAITyping        = "aiTyping"
	EventError           = "error"
)

// Event is one outbound frame.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Encode serializes the event as a wire frame.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// GameState is the snapshot sent to a joining connection.
type GameState struct {
	ConnectionID string                      `json:"connectionId"`
	Sessions     map[string]*session.Session `json:"sessionsById"`
	Current      string                      `json:"currentSession"`
	Chat         []session.Message           `json:"chatLog"`
	OOC          []session.Message           `json:"oocLog"`
	Turns        session.TurnSystem          `json:"turnSystem"`
	Clock        session.Clock               `json:"clock"`
	Players      []PresenceView              `json:"connectedPlayers"`
}

// PresenceView is a presence entry with its character resolved to a
// current roster position.
type PresenceView struct {
	presence.Entry
	CharacterIndex int `json:"characterIndex"`
}

// TurnView is the payload of turnChanged.
type TurnView struct {
	TurnSystem    session.TurnSystem `json:"turnSystem"`
	CurrentPlayer string             `json:"currentPlayerName,omitempty"`
	CurrentID     string             `json:"currentPlayerId,omitempty"`
}

// PlayerView carries one roster entry and its position.
type PlayerView struct {
	Index  int               `json:"playerIndex"`
	Player session.Character `json:"player"`
}

// PlayerDeletedView identifies a removed roster entry.
type PlayerDeletedView struct {
	Index int    `json:"playerIndex"`
	ID    string `json:"playerId"`
}

// NPCView carries one bestiary entry.
type NPCView struct {
	Faction string      `json:"faction"`
	Index   int         `json:"index"`
	NPC     session.NPC `json:"npc"`
}

// DataView carries the sessions after a bulk change.
type DataView struct {
	Sessions map[string]*session.Session `json:"sessionsById"`
	Current  string                      `json:"currentSession"`
}

// ErrorView reports a rejected frame to its sender.
type ErrorView struct {
	Message string `json:"message"`
}

// Health summarises the hub for the health endpoint.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Players   int       `json:"players"`
	Sessions  int       `json:"sessions"`
	Roster    int       `json:"roster"`
	Chat      int       `json:"chat"`
	OOC       int       `json:"ooc"`
}

// PlayerSummary is a compact roster entry.
type PlayerSummary struct {
	Index    int     `json:"index"`
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Species  string  `json:"species,omitempty"`
	Location string  `json:"location,omitempty"`
	HP       float64 `json:"hp"`
	MaxHP    float64 `json:"maxHp"`
}

// Overview is a compact read of the game for tools.
type Overview struct {
	Title         string            `json:"title"`
	Round         int               `json:"round"`
	Date          time.Time         `json:"date"`
	TurnsEnabled  bool              `json:"turnsEnabled"`
	CurrentTurn   int               `json:"currentTurn"`
	CurrentPlayer string            `json:"currentPlayer,omitempty"`
	Players       []PlayerSummary   `json:"players"`
	Connected     []string          `json:"connected"`
	Recent        []session.Message `json:"recent"`
}
