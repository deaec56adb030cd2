// Package kit holds the transport-neutral endpoint type used by the MCP
// surface, plus request-scoped context values read by the session when it
// logs and journals a command.
package kit

import "context"

// Endpoint handles one decoded request.
type Endpoint func(ctx context.Context, req any) (any, error)
