// middleware/logger/events.go
package logger

import (
	"go.uber.org/zap"
)

// Events is the categorized logging sink the core components call into:
// request lifecycle, authorization outcomes, module/reload outcomes and
// uncaught errors. It owns no formatting or rotation policy beyond what the
// underlying zap logger was built with.
type Events struct {
	log *zap.Logger
}

func NewEvents(l *zap.Logger) *Events { return &Events{log: l} }

func ProvideEvents(l *zap.Logger) *Events { return NewEvents(l) }

// Nop returns a sink that discards everything. Useful for tests.
func Nop() *Events { return &Events{log: zap.NewNop()} }

func (e *Events) System(event string, fields ...zap.Field) {
	e.log.Info("system", append([]zap.Field{zap.String("event", event)}, fields...)...)
}

func (e *Events) Module(event, module string, fields ...zap.Field) {
	e.log.Info("module",
		append([]zap.Field{zap.String("event", event), zap.String("module", module)}, fields...)...)
}

func (e *Events) AuthFailure(endpoint, remoteAddr, reason string) {
	e.log.Warn("auth",
		zap.String("event", "AUTH_FAILURE"),
		zap.String("endpoint", endpoint),
		zap.String("remoteAddr", remoteAddr),
		zap.String("reason", reason),
	)
}

func (e *Events) ReloadOutcome(module, outcome string, added, removed int, loadErr error) {
	fields := []zap.Field{
		zap.String("event", "MODULE_RELOAD"),
		zap.String("module", module),
		zap.String("outcome", outcome),
		zap.Int("endpointsAdded", added),
		zap.Int("endpointsRemoved", removed),
	}
	if loadErr != nil {
		e.log.Error("reload", append(fields, zap.Error(loadErr))...)
		return
	}
	e.log.Info("reload", fields...)
}

func (e *Events) UncaughtError(endpoint string, err error) {
	e.log.Error("uncaught",
		zap.String("event", "UNCAUGHT_ERROR"),
		zap.String("endpoint", endpoint),
		zap.Error(err),
	)
}
