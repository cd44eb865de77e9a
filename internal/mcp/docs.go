package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `rpstage runs a live roleplay table: a roster of characters, a turn order, an in-fiction clock and a shared chat log.

You act as the game master. Typical loop:
1) Orient: call get_game_state to see whose turn it is and what was said recently.
2) Narrate: post_narration describes consequences of the last player action.
3) Move on: advance_turn passes the turn (skip=true announces a skipped turn). After the last player the round rolls over and the clock moves forward.
4) Bookkeeping: update_player changes hp, location or other fields; set_clock adjusts the in-fiction date.

Every change is pushed to connected players immediately.

HTTP callers may send their display name in the X-Display-Name header; other transports may use _meta.display_name.

Docs: rpstage://docs/game-loop`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "rpstage://docs/game-loop",
		Name:        "game_loop",
		Title:       "rpstage game loop",
		Description: "How turns, rounds, the clock and the chat log interact.",
		Content: `# Game loop

## Roster and turns

- The roster is an ordered list of characters. ` + "`current_turn`" + ` is a position in it.
- Advancing moves to the next position. After the last one a new round starts:
  the round number increases, the played set is cleared, the in-fiction clock moves
  forward by the configured step and a round separator is posted.
- Skipping posts "<name> skips their turn." and then advances.
- When the turn system is disabled, advance_turn is rejected.
- Removing a character before the current position shifts the turn back by one.

## Chat

- Messages carry a kind: player, narrator or system. Out-of-character talk lives in a separate log.
- Logs are bounded; the oldest entries are dropped first.
- Player actions may trigger an automatic narration when a language model is configured.

## Clock

- The clock holds an in-fiction date and a round. set_clock replaces the date;
  omitting the round keeps the current one.

## Players

- update_player merges fields into the entry. Nested objects merge, arrays and scalars replace.
- The ` + "`id`" + ` field cannot be changed.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
