package hub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeCommand(t *testing.T) {
	cases := []struct {
		name    string
		kind    string
		payload string
		want    Command
	}{
		{"join bare name", CmdJoin, `"Ichigo"`, Join{DisplayName: "Ichigo"}},
		{"join object", CmdJoin, `{"displayName": "Rukia", "characterIndex": 1}`, Join{DisplayName: "Rukia", CharacterRef: CharacterRef{Index: ptr(1)}}},
		{"join empty", CmdJoin, ``, Join{}},
		{"select bare index", CmdSelectCharacter, `2`, SelectCharacter{CharacterRef: CharacterRef{Index: ptr(2)}}},
		{"select by id", CmdSelectCharacter, `{"characterId": "abc"}`, SelectCharacter{CharacterRef: CharacterRef{ID: "abc"}}},
		{"message object", CmdSendMessage, `{"text": "hi", "kind": "narrator", "characterIndex": 0}`, SendMessage{Text: "hi", Kind: "narrator", CharacterRef: CharacterRef{Index: ptr(0)}}},
		{"message bare text", CmdSendMessage, `"hi"`, SendMessage{Text: "hi"}},
		{"ooc", CmdSendOOC, `{"text": "brb"}`, SendOOC{Text: "brb"}},
		{"next turn", CmdNextTurn, ``, NextTurn{}},
		{"set turn bare", CmdSetTurn, `3`, SetTurn{Index: 3}},
		{"set turn object", CmdSetTurn, `{"index": 1}`, SetTurn{Index: 1}},
		{"delete bare", CmdDeletePlayer, `0`, DeletePlayer{Index: ptr(0)}},
		{"delete by id", CmdDeletePlayer, `{"playerId": "c1"}`, DeletePlayer{ID: "c1"}},
		{"add wrapped", CmdAddPlayer, `{"player": {"name": "Chad"}}`, AddPlayer{Data: map[string]any{"name": "Chad"}}},
		{"add bare", CmdAddPlayer, `{"name": "Chad"}`, AddPlayer{Data: map[string]any{"name": "Chad"}}},
		{"update player", CmdUpdatePlayer, `{"playerIndex": 0, "updates": {"hp": 5}}`, UpdatePlayer{Index: ptr(0), Updates: map[string]any{"hp": float64(5)}}},
		{"delete npc", CmdDeleteNPC, `{"faction": "Hollow", "index": 2}`, DeleteNPC{Faction: "Hollow", Index: 2}},
		{"update session", CmdUpdateSession, `{"title": "x"}`, UpdateSession{Fields: map[string]any{"title": "x"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeCommand(tc.kind, json.RawMessage(tc.payload))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.kind, got.Name())
		})
	}
}

func TestDecodeCommand_Rejects(t *testing.T) {
	_, err := DecodeCommand("castSpell", nil)
	require.ErrorIs(t, err, ErrUnknownCommand)

	for name, tc := range map[string]struct{ kind, payload string }{
		"numeric text":     {CmdSendMessage, `{"text": 42}`},
		"missing message":  {CmdSendMessage, ``},
		"set turn text":    {CmdSetTurn, `"two"`},
		"set turn missing": {CmdSetTurn, `{}`},
		"update no target": {CmdUpdatePlayer, `{"updates": {}}`},
		"session array":    {CmdUpdateSession, `[1]`},
		"bad clock":        {CmdUpdateRPTime, `{"date": "yesterday"}`},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCommand(tc.kind, json.RawMessage(tc.payload))
			require.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func ptr(i int) *int { return &i }
