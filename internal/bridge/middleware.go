package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanikLP1/binaryfs/internal/logging"
	"github.com/oklog/ulid/v2"
	"github.com/tetratelabs/wazero/api"
)

// bindingFunc is a binding body: it reads its params from stack and
// returns the status that goes back to the guest.
type bindingFunc func(ctx context.Context, log *slog.Logger, m api.Module, stack []uint64) uint32

// wrap gives every call an id, a scoped logger and a recover guard, so
// a failing binding surfaces as StatusIOError in the guest instead of
// taking the host process down.
func (h *host) wrap(name string, fn bindingFunc) api.GoModuleFunc {
	return func(ctx context.Context, m api.Module, stack []uint64) {
		id := ulid.Make().String()
		ctx = logging.WithCallID(ctx, id)
		log := h.log.With(
			slog.String("call_id", id),
			slog.String("fn", name),
		)
		start := time.Now()
		status := StatusIOError

		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic", "err", rec)
				status = StatusIOError
			}
			stack[0] = api.EncodeU32(status)
			log.Debug("call",
				slog.Uint64("status", uint64(status)),
				slog.Duration("dur", time.Since(start)),
			)
		}()

		status = fn(ctx, log, m, stack)
	}
}
