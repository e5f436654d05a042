// funcs/demo.go
package funcs

import (
	"context"
	"time"

	"github.com/funcgate/funcgate-core/pkg/handler"
)

// Built-in demo handlers. A module definition file binds these under a
// module namespace; see examples/modules/demo.toml.

func init() {
	handler.Register("demo.sync_hello", SyncHello)
	handler.Register("demo.async_hello", AsyncHello, handler.WithAsync())
}

// SyncHello greets and returns immediately.
func SyncHello(_ context.Context, args map[string]any) (any, error) {
	name, _ := args["name"].(string)
	return map[string]any{
		"message":   "Hello, " + name + "!",
		"timestamp": time.Now().UnixMilli(),
		"type":      "synchronous",
	}, nil
}

// AsyncHello greets after a configurable delay, yielding the request path
// while it sleeps.
func AsyncHello(ctx context.Context, args map[string]any) (any, error) {
	name, _ := args["name"].(string)
	delay, _ := args["delay"].(float64)

	select {
	case <-time.After(time.Duration(delay * float64(time.Second))):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return map[string]any{
		"message":   "Hello, " + name + "! (async)",
		"timestamp": time.Now().UnixMilli(),
		"type":      "asynchronous",
	}, nil
}
