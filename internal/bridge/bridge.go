// Package bridge installs the binary file operations into a wazero
// runtime as a host module, so guest code can call them synchronously
// without going through any message channel.
//
// Installation is tracked per runtime: Uninstalled -> Installed, or
// Uninstalled -> Failed. There is no way back. A second Install on an
// installed runtime returns ErrAlreadyInstalled; on a failed runtime it
// returns the recorded failure.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/DanikLP1/binaryfs/internal/binfs"
	"github.com/DanikLP1/binaryfs/internal/fserrors"
	"github.com/DanikLP1/binaryfs/internal/locator"
	"github.com/DanikLP1/binaryfs/internal/logging"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// ModuleName is the import module guests use for the bindings.
const ModuleName = "binfs"

// Runtime is the part of a wazero.Runtime the installer needs.
// Implementations are used as map keys and must be comparable; every
// wazero runtime is.
type Runtime interface {
	NewHostModuleBuilder(moduleName string) wazero.HostModuleBuilder
}

// A runtime that implements this and reports false (a debug runtime)
// does not get bindings.
type directBindings interface {
	DirectBindings() bool
}

type debugRuntime struct{ Runtime }

func (*debugRuntime) DirectBindings() bool { return false }

// Debug marks rt as a runtime that exposes no direct bindings.
func Debug(rt Runtime) Runtime { return &debugRuntime{rt} }

// Ops is what the bindings call into. *binfs.Service implements it.
type Ops interface {
	Exists(ctx context.Context, raw string) (bool, error)
	Stat(ctx context.Context, raw string) (locator.Entry, error)
	Read(ctx context.Context, req binfs.ReadRequest) (binfs.ReadResult, error)
	Write(ctx context.Context, req binfs.WriteRequest) (string, error)
	Locate(name string) (string, error)
}

var _ Ops = (*binfs.Service)(nil)

type State int

const (
	StateUninstalled State = iota
	StateInstalled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninstalled:
		return "uninstalled"
	case StateInstalled:
		return "installed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type installation struct {
	state  State
	err    error
	bridge *Bridge
}

type Installer struct {
	ops    Ops
	Logger *slog.Logger

	mu     sync.Mutex
	states map[Runtime]*installation
}

func NewInstaller(ops Ops, logger *slog.Logger) *Installer {
	return &Installer{
		ops:    ops,
		Logger: logging.OrDefault(logger).With(slog.String("comp", "bridge")),
		states: make(map[Runtime]*installation),
	}
}

// Bridge is the capability handed back by Install: the instantiated
// host module living inside one runtime.
type Bridge struct {
	module api.Module
}

func (b *Bridge) Module() api.Module { return b.module }

// Functions lists the exported binding names.
func (b *Bridge) Functions() []string {
	names := make([]string, 0, len(bindings))
	for _, fn := range bindings {
		names = append(names, fn.name)
	}
	return names
}

// State reports where rt is in its lifecycle and, for StateFailed, why.
func (i *Installer) State(rt Runtime) (State, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if inst, ok := i.states[rt]; ok {
		return inst.state, inst.err
	}
	return StateUninstalled, nil
}

// Install registers the bindings in rt. It never panics; an unusable
// runtime is reported as ErrBridgeUnavailable and the bindings simply
// stay uncallable there.
func (i *Installer) Install(ctx context.Context, rt Runtime) (*Bridge, error) {
	if rt == nil {
		err := fmt.Errorf("install: %w: no runtime", fserrors.ErrBridgeUnavailable)
		i.Logger.Error("install.unavailable", "err", err)
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if inst, ok := i.states[rt]; ok {
		switch inst.state {
		case StateInstalled:
			return nil, fmt.Errorf("install: %w", fserrors.ErrAlreadyInstalled)
		default:
			return nil, inst.err
		}
	}

	if d, ok := rt.(directBindings); ok && !d.DirectBindings() {
		err := fmt.Errorf("install: %w: runtime exposes no direct bindings (debug mode)", fserrors.ErrBridgeUnavailable)
		i.states[rt] = &installation{state: StateFailed, err: err}
		i.Logger.Error("install.unavailable", "err", err)
		return nil, err
	}

	b, err := i.instantiate(ctx, rt)
	if err != nil {
		err = fmt.Errorf("install: %w: %w", fserrors.ErrBridgeUnavailable, err)
		i.states[rt] = &installation{state: StateFailed, err: err}
		i.Logger.Error("install.fail", "err", err)
		return nil, err
	}
	i.states[rt] = &installation{state: StateInstalled, bridge: b}
	i.Logger.Info("install.ok", "module", ModuleName, "functions", len(bindings))
	return b, nil
}

func (i *Installer) instantiate(ctx context.Context, rt Runtime) (b *Bridge, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while building host module: %v", rec)
		}
	}()

	h := &host{ops: i.ops, log: i.Logger}
	builder := rt.NewHostModuleBuilder(ModuleName)
	for _, fn := range bindings {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(h.wrap(fn.name, fn.impl(h)), fn.params, []api.ValueType{api.ValueTypeI32}).
			WithParameterNames(fn.paramNames...).
			Export(fn.name)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	return &Bridge{module: mod}, nil
}
