package mcp

import (
	"context"
	"strings"

	"github.com/ganot/rpstage/internal/domain/presence"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultActor is the author of tool calls that do not name themselves.
const DefaultActor = "GM"

// DisplayNameHeader carries the caller's display name over HTTP.
const DisplayNameHeader = "X-Display-Name"

type contextKey int

const actorKey contextKey = iota

// actorFrom extracts the caller name from context.
func actorFrom(ctx context.Context) string {
	v, _ := ctx.Value(actorKey).(string)
	return v
}

// actorMiddleware resolves the caller's display name from the HTTP header or,
// on transports without headers, from _meta.display_name.
func actorMiddleware(fallback string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			var name string

			if extra := req.GetExtra(); extra != nil && extra.Header != nil {
				name = extra.Header.Get(DisplayNameHeader)
			}

			// Notifications such as "initialized" may carry nil params.
			if strings.TrimSpace(name) == "" {
				name = metaDisplayName(req)
			}

			name = strings.TrimSpace(name)
			if name == "" {
				name = fallback
			} else {
				name = presence.SanitizeName(name)
			}

			ctx = context.WithValue(ctx, actorKey, name)
			return next(ctx, method, req)
		}
	}
}

func metaDisplayName(req sdkmcp.Request) (name string) {
	params := req.GetParams()
	if params == nil {
		return ""
	}
	// GetMeta panics on some typed-nil params.
	defer func() { recover() }()
	if meta := params.GetMeta(); meta != nil {
		name, _ = meta["display_name"].(string)
	}
	return name
}
