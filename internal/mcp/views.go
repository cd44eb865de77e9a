package mcp

import (
	"time"

	"github.com/ganot/rpstage/internal/hub"
)

// GameState is the tool-facing read of the game. Times are RFC 3339 strings.
type GameState struct {
	Title         string              `json:"title"`
	Round         int                 `json:"round"`
	Date          string              `json:"date"`
	TurnsEnabled  bool                `json:"turns_enabled"`
	CurrentTurn   int                 `json:"current_turn"`
	CurrentPlayer string              `json:"current_player,omitempty"`
	Players       []hub.PlayerSummary `json:"players"`
	Connected     []string            `json:"connected"`
	Recent        []ChatLine          `json:"recent"`
}

// ChatLine is one chat log entry.
type ChatLine struct {
	ID     int64  `json:"id"`
	Kind   string `json:"kind"`
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
	Round  int    `json:"round,omitempty"`
	At     string `json:"at"`
}

func gameStateFrom(ov hub.Overview) GameState {
	out := GameState{
		Title:         ov.Title,
		Round:         ov.Round,
		Date:          ov.Date.UTC().Format(time.RFC3339),
		TurnsEnabled:  ov.TurnsEnabled,
		CurrentTurn:   ov.CurrentTurn,
		CurrentPlayer: ov.CurrentPlayer,
		Players:       ov.Players,
		Connected:     ov.Connected,
		Recent:        make([]ChatLine, 0, len(ov.Recent)),
	}
	if out.Players == nil {
		out.Players = []hub.PlayerSummary{}
	}
	if out.Connected == nil {
		out.Connected = []string{}
	}
	for _, m := range ov.Recent {
		out.Recent = append(out.Recent, ChatLine{
			ID:     m.ID,
			Kind:   string(m.Kind),
			Author: m.Author,
			Text:   m.Text,
			Round:  m.Round,
			At:     m.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return out
}
