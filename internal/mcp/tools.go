package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/ganot/rpstage/internal/domain/session"
	"github.com/ganot/rpstage/internal/hub"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Bounds for get_game_state's recent argument.
const (
	defaultRecent = 20
	maxRecent     = 100
)

type GameStateInput struct {
	Recent int `json:"recent,omitempty" jsonschema:"number of recent chat messages to include (default 20, max 100)"`
}

type PostNarrationInput struct {
	Text   string `json:"text" jsonschema:"narration text shown to every player"`
	Author string `json:"author,omitempty" jsonschema:"author shown on the message (defaults to the caller)"`
}

type AdvanceTurnInput struct {
	Skip bool `json:"skip,omitempty" jsonschema:"announce that the current player skipped their turn"`
}

type SetClockInput struct {
	Date  string `json:"date" jsonschema:"in-fiction date and time, RFC 3339"`
	Round int    `json:"round,omitempty" jsonschema:"round to display (defaults to the current round)"`
}

type UpdatePlayerInput struct {
	Index  int            `json:"index" jsonschema:"roster position of the player"`
	Fields map[string]any `json:"fields" jsonschema:"fields to merge into the player, e.g. hp or location"`
}

func registerTools(server *sdkmcp.Server, game Game) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_game_state",
		Description: "Read the current session: roster, turn, in-fiction clock, connected participants and recent chat",
	}, gameStateHandler(game))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "post_narration",
		Description: "Post a narrator message to the chat log",
	}, postNarrationHandler(game))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "advance_turn",
		Description: "Pass the turn to the next player; the round rolls over after the last one",
	}, advanceTurnHandler(game))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "set_clock",
		Description: "Set the in-fiction date and round",
	}, setClockHandler(game))

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "update_player",
		Description: "Merge fields into a roster entry; the id cannot be changed",
	}, updatePlayerHandler(game))
}

func gameStateHandler(game Game) sdkmcp.ToolHandlerFor[GameStateInput, GameState] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, input GameStateInput) (*sdkmcp.CallToolResult, GameState, error) {
		recent := input.Recent
		if recent <= 0 {
			recent = defaultRecent
		}
		recent = min(recent, maxRecent)
		out, err := game.Overview(ctx, recent)
		if err != nil {
			return nil, GameState{}, MapError(err)
		}
		return nil, gameStateFrom(out), nil
	}
}

func postNarrationHandler(game Game) sdkmcp.ToolHandlerFor[PostNarrationInput, GameState] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, input PostNarrationInput) (*sdkmcp.CallToolResult, GameState, error) {
		text := strings.TrimSpace(input.Text)
		if text == "" {
			return nil, GameState{}, invalid("text is required")
		}
		actor := hub.Actor{Name: actorFrom(ctx)}
		if author := strings.TrimSpace(input.Author); author != "" {
			actor.Name = author
		}
		cmd := hub.SendMessage{Text: text, Kind: session.KindNarrator}
		return submit(ctx, game, actor, cmd, 1)
	}
}

func advanceTurnHandler(game Game) sdkmcp.ToolHandlerFor[AdvanceTurnInput, GameState] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, input AdvanceTurnInput) (*sdkmcp.CallToolResult, GameState, error) {
		state, err := game.Overview(ctx, 0)
		if err != nil {
			return nil, GameState{}, MapError(err)
		}
		if !state.TurnsEnabled {
			return nil, GameState{}, &APIError{Code: "TURNS_DISABLED", Message: "turn system is disabled"}
		}
		if len(state.Players) == 0 {
			return nil, GameState{}, &APIError{Code: "EMPTY_ROSTER", Message: "no players to take a turn", RecoveryHint: "Add a player first"}
		}
		var cmd hub.Command = hub.NextTurn{}
		if input.Skip {
			cmd = hub.SkipTurn{}
		}
		return submit(ctx, game, hub.Actor{Name: actorFrom(ctx)}, cmd, 2)
	}
}

func setClockHandler(game Game) sdkmcp.ToolHandlerFor[SetClockInput, GameState] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, input SetClockInput) (*sdkmcp.CallToolResult, GameState, error) {
		date, err := time.Parse(time.RFC3339, strings.TrimSpace(input.Date))
		if err != nil {
			return nil, GameState{}, invalid("date must be RFC 3339: %v", err)
		}
		if input.Round < 0 {
			return nil, GameState{}, invalid("round must be positive")
		}
		cmd := hub.UpdateRPTime{Clock: session.Clock{Date: date.UTC(), Round: input.Round}}
		return submit(ctx, game, hub.Actor{Name: actorFrom(ctx)}, cmd, 0)
	}
}

func updatePlayerHandler(game Game) sdkmcp.ToolHandlerFor[UpdatePlayerInput, GameState] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, input UpdatePlayerInput) (*sdkmcp.CallToolResult, GameState, error) {
		if len(input.Fields) == 0 {
			return nil, GameState{}, invalid("fields are required")
		}
		state, err := game.Overview(ctx, 0)
		if err != nil {
			return nil, GameState{}, MapError(err)
		}
		if input.Index < 0 || input.Index >= len(state.Players) {
			return nil, GameState{}, MapError(session.ErrCharacterNotFound)
		}
		index := input.Index
		cmd := hub.UpdatePlayer{Index: &index, Updates: input.Fields}
		return submit(ctx, game, hub.Actor{Name: actorFrom(ctx)}, cmd, 0)
	}
}

// submit applies cmd and returns the state that results from it.
func submit(ctx context.Context, game Game, actor hub.Actor, cmd hub.Command, recent int) (*sdkmcp.CallToolResult, GameState, error) {
	if err := game.Submit(ctx, actor, cmd); err != nil {
		return nil, GameState{}, MapError(err)
	}
	out, err := game.Overview(ctx, recent)
	if err != nil {
		return nil, GameState{}, MapError(err)
	}
	return nil, gameStateFrom(out), nil
}
