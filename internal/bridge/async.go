package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DanikLP1/binaryfs/internal/binfs"
	"github.com/DanikLP1/binaryfs/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Dispatcher is the asynchronous counterpart of the direct bindings.
// Calls run on a bounded pool of background workers and report through
// a callback, so a stalled disk never blocks the caller's thread.
//
// Submitting blocks only while all workers are busy.
type Dispatcher struct {
	ctx context.Context
	ops Ops
	g   errgroup.Group
	log *slog.Logger
}

func NewDispatcher(ctx context.Context, ops Ops, workers int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		ctx: ctx,
		ops: ops,
		log: logging.OrDefault(logger).With(slog.String("comp", "dispatcher")),
	}
	d.g.SetLimit(workers)
	return d
}

func (d *Dispatcher) submit(op string, run func(ctx context.Context)) {
	d.g.Go(func() error {
		defer func() {
			if rec := recover(); rec != nil {
				d.log.Error("panic", "op", op, "err", rec)
			}
		}()
		run(d.ctx)
		return nil
	})
}

func (d *Dispatcher) Exists(raw string, done func(bool, error)) {
	d.submit("exists", func(ctx context.Context) {
		if err := ctx.Err(); err != nil {
			done(false, err)
			return
		}
		done(d.ops.Exists(ctx, raw))
	})
}

func (d *Dispatcher) Read(req binfs.ReadRequest, done func(binfs.ReadResult, error)) {
	d.submit("read", func(ctx context.Context) {
		if err := ctx.Err(); err != nil {
			done(binfs.ReadResult{}, err)
			return
		}
		done(d.ops.Read(ctx, req))
	})
}

func (d *Dispatcher) Write(req binfs.WriteRequest, done func(string, error)) {
	d.submit("write", func(ctx context.Context) {
		if err := ctx.Err(); err != nil {
			done("", fmt.Errorf("write %s: %w", req.Name, err))
			return
		}
		done(d.ops.Write(ctx, req))
	})
}

// Wait blocks until every submitted call has reported.
func (d *Dispatcher) Wait() {
	_ = d.g.Wait()
}
