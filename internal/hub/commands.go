package hub

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ganot/rpstage/internal/domain/session"
)

// Command names accepted on the wire.
const (
	CmdJoin             = "join"
	CmdSelectCharacter  = "selectCharacter"
	CmdSendMessage      = "sendMessage"
	CmdSendOOC          = "sendOOC"
	CmdNextTurn         = "nextTurn"
	CmdSkipTurn         = "skipTurn"
	CmdSetTurn          = "setTurn"
	CmdResetTurns       = "resetTurns"
	CmdToggleTurnSystem = "toggleTurnSystem"
	CmdUpdatePlayer     = "updatePlayer"
	CmdAddPlayer        = "addPlayer"
	CmdDeletePlayer     = "deletePlayer"
	CmdUpdateNPC        = "updateNPC"
	CmdAddNPC           = "addNPC"
	CmdDeleteNPC        = "deleteNPC"
	CmdUpdateSession    = "updateSession"
	CmdUpdateRPTime     = "updateRPTime"
	CmdClearChat        = "clearChat"
	CmdClearOOC         = "clearOOC"
	CmdDisconnect       = "disconnect"
)

// Command is one inbound request.
type Command interface {
	Name() string
}

// CharacterRef points at a roster entry by id or, failing that, by position.
type CharacterRef struct {
	ID    string `json:"characterId,omitempty"`
	Index *int   `json:"characterIndex,omitempty"`
}

func (r CharacterRef) empty() bool { return r.ID == "" && r.Index == nil }

// names reports whether r points at a character, resolvable or not.
func (r CharacterRef) names() bool {
	return r.ID != "" || (r.Index != nil && *r.Index >= 0)
}

// Join registers the connection under a display name. The payload is either
// a bare string or an object.
type Join struct {
	DisplayName string `json:"displayName"`
	CharacterRef
}

// SelectCharacter sets the character the connection plays. A negative index
// clears the selection.
type SelectCharacter struct {
	CharacterRef
}

// SendMessage posts to the chat log.
type SendMessage struct {
	Text          string              `json:"text"`
	Kind          session.MessageKind `json:"kind,omitempty"`
	CharacterName string              `json:"characterName,omitempty"`
	CharacterRef
}

// SendOOC posts to the out-of-character log.
type SendOOC struct {
	Text string `json:"text"`
}

type NextTurn struct{}
type SkipTurn struct{}
type ResetTurns struct{}
type ToggleTurnSystem struct{}
type ClearChat struct{}
type ClearOOC struct{}
type Disconnect struct{}

// SetTurn jumps to a roster position.
type SetTurn struct {
	Index int `json:"index"`
}

// UpdatePlayer merges fields into one roster entry.
type UpdatePlayer struct {
	Index   *int           `json:"playerIndex,omitempty"`
	ID      string         `json:"playerId,omitempty"`
	Updates map[string]any `json:"updates"`
}

// AddPlayer appends a character.
type AddPlayer struct {
	Data map[string]any
}

// DeletePlayer removes a character.
type DeletePlayer struct {
	Index *int   `json:"playerIndex,omitempty"`
	ID    string `json:"playerId,omitempty"`
}

// UpdateNPC replaces one bestiary entry.
type UpdateNPC struct {
	Faction string      `json:"faction"`
	Index   int         `json:"index"`
	NPC     session.NPC `json:"npc"`
}

// AddNPC appends to a faction.
type AddNPC struct {
	Faction string      `json:"faction"`
	NPC     session.NPC `json:"npc"`
}

// DeleteNPC removes a bestiary entry.
type DeleteNPC struct {
	Faction string `json:"faction"`
	Index   int    `json:"index"`
}

// UpdateSession deep-merges fields into the current session.
type UpdateSession struct {
	Fields map[string]any
}

// UpdateRPTime replaces the in-fiction clock.
type UpdateRPTime struct {
	Clock session.Clock
}

// narrationDone carries a finished narration back into the loop.
type narrationDone struct {
	text string
	ok   bool
}

func (Join) Name() string { return CmdJoin }
func (SelectCharacter) Name() string { return CmdSelectCharacter }
func (SendMessage) Name() string { return CmdSendMessage }
func (SendOOC) Name() string { return CmdSendOOC }
func (NextTurn) Name() string { return CmdNextTurn }
func (SkipTurn) Name() string { return CmdSkipTurn }
func (SetTurn) Name() string { return CmdSetTurn }
func (ResetTurns) Name() string { return CmdResetTurns }
func (ToggleTurnSystem) Name() string { return CmdToggleTurnSystem }
func (UpdatePlayer) Name() string { return CmdUpdatePlayer }
func (AddPlayer) Name() string { return CmdAddPlayer }
func (DeletePlayer) Name() string { return CmdDeletePlayer }
func (UpdateNPC) Name() string { return CmdUpdateNPC }
func (AddNPC) Name() string { return CmdAddNPC }
func (DeleteNPC) Name() string { return CmdDeleteNPC }
func (UpdateSession) Name() string { return CmdUpdateSession }
func (UpdateRPTime) Name() string { return CmdUpdateRPTime }
func (ClearChat) Name() string { return CmdClearChat }
func (ClearOOC) Name() string { return CmdClearOOC }
func (Disconnect) Name() string { return CmdDisconnect }
func (narrationDone) Name() string { return "narrationDone" }

type decoder func(payload json.RawMessage) (Command, error)

var decoders = map[string]decoder{
	CmdJoin:             decodeJoin,
	CmdSelectCharacter:  decodeSelect,
	CmdSendMessage:      decodeSendMessage,
	CmdSendOOC:          decodeSendOOC,
	CmdNextTurn:         noPayload(NextTurn{}),
	CmdSkipTurn:         noPayload(SkipTurn{}),
	CmdResetTurns:       noPayload(ResetTurns{}),
	CmdToggleTurnSystem: noPayload(ToggleTurnSystem{}),
	CmdClearChat:        noPayload(ClearChat{}),
	CmdClearOOC:         noPayload(ClearOOC{}),
	CmdDisconnect:       noPayload(Disconnect{}),
	CmdSetTurn:          decodeSetTurn,
	CmdUpdatePlayer:     decodeUpdatePlayer,
	CmdAddPlayer:        decodeAddPlayer,
	CmdDeletePlayer:     decodeDeletePlayer,
	CmdUpdateNPC:        object[UpdateNPC],
	CmdAddNPC:           object[AddNPC],
	CmdDeleteNPC:        object[DeleteNPC],
	CmdUpdateSession:    decodeUpdateSession,
	CmdUpdateRPTime:     decodeUpdateRPTime,
}

// DecodeCommand builds a command from a frame type and its payload.
func DecodeCommand(name string, payload json.RawMessage) (Command, error) {
	dec, ok := decoders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	cmd, err := dec(bytes.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, name, err)
	}
	return cmd, nil
}

func noPayload(cmd Command) decoder {
	return func(json.RawMessage) (Command, error) { return cmd, nil }
}

func object[T Command](payload json.RawMessage) (Command, error) {
	var cmd T
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

func isNull(payload json.RawMessage) bool {
	return len(payload) == 0 || bytes.Equal(payload, []byte("null"))
}

// intOrField accepts a bare number or an object holding the number under field.
func intOrField(payload json.RawMessage, field string) (*int, error) {
	if isNull(payload) {
		return nil, fmt.Errorf("missing %s", field)
	}
	var n int
	if err := json.Unmarshal(payload, &n); err == nil {
		return &n, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, err
	}
	raw, ok := obj[field]
	if !ok {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func decodeJoin(payload json.RawMessage) (Command, error) {
	var cmd Join
	if isNull(payload) {
		return cmd, nil
	}
	if payload[0] == '"' {
		err := json.Unmarshal(payload, &cmd.DisplayName)
		return cmd, err
	}
	err := json.Unmarshal(payload, &cmd)
	return cmd, err
}

func decodeSelect(payload json.RawMessage) (Command, error) {
	var cmd SelectCharacter
	if isNull(payload) {
		return cmd, nil
	}
	if payload[0] == '{' {
		err := json.Unmarshal(payload, &cmd)
		return cmd, err
	}
	idx, err := intOrField(payload, "characterIndex")
	cmd.Index = idx
	return cmd, err
}

func decodeSendMessage(payload json.RawMessage) (Command, error) {
	var cmd SendMessage
	if isNull(payload) {
		return nil, fmt.Errorf("missing payload")
	}
	if payload[0] == '"' {
		err := json.Unmarshal(payload, &cmd.Text)
		return cmd, err
	}
	err := json.Unmarshal(payload, &cmd)
	return cmd, err
}

func decodeSendOOC(payload json.RawMessage) (Command, error) {
	var cmd SendOOC
	if isNull(payload) {
		return nil, fmt.Errorf("missing payload")
	}
	if payload[0] == '"' {
		err := json.Unmarshal(payload, &cmd.Text)
		return cmd, err
	}
	err := json.Unmarshal(payload, &cmd)
	return cmd, err
}

func decodeSetTurn(payload json.RawMessage) (Command, error) {
	idx, err := intOrField(payload, "index")
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, fmt.Errorf("missing index")
	}
	return SetTurn{Index: *idx}, nil
}

func decodeUpdatePlayer(payload json.RawMessage) (Command, error) {
	var cmd UpdatePlayer
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, err
	}
	if cmd.Index == nil && cmd.ID == "" {
		return nil, fmt.Errorf("missing playerIndex")
	}
	return cmd, nil
}

func decodeAddPlayer(payload json.RawMessage) (Command, error) {
	var wrapper struct {
		Player map[string]any `json:"player"`
	}
	if err := json.Unmarshal(payload, &wrapper); err == nil && wrapper.Player != nil {
		return AddPlayer{Data: wrapper.Player}, nil
	}
	var data map[string]any
	if !isNull(payload) {
		if err := json.Unmarshal(payload, &data); err != nil {
			return nil, err
		}
	}
	return AddPlayer{Data: data}, nil
}

func decodeDeletePlayer(payload json.RawMessage) (Command, error) {
	if len(payload) > 0 && payload[0] == '{' {
		var cmd DeletePlayer
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return nil, err
		}
		if cmd.Index == nil && cmd.ID == "" {
			return nil, fmt.Errorf("missing playerIndex")
		}
		return cmd, nil
	}
	idx, err := intOrField(payload, "playerIndex")
	if err != nil {
		return nil, err
	}
	return DeletePlayer{Index: idx}, nil
}

func decodeUpdateSession(payload json.RawMessage) (Command, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("missing fields")
	}
	return UpdateSession{Fields: fields}, nil
}

func decodeUpdateRPTime(payload json.RawMessage) (Command, error) {
	var clock session.Clock
	if err := json.Unmarshal(payload, &clock); err != nil {
		return nil, err
	}
	return UpdateRPTime{Clock: clock}, nil
}
