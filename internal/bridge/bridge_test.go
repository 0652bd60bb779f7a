package bridge

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/DanikLP1/binaryfs/internal/binfs"
	"github.com/DanikLP1/binaryfs/internal/fserrors"
	"github.com/DanikLP1/binaryfs/internal/locator"
	"github.com/DanikLP1/binaryfs/internal/logging"
	"github.com/DanikLP1/binaryfs/internal/storage"
	"github.com/DanikLP1/binaryfs/internal/storage/fsdriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// guestWasm is a module with one exported page of memory and nothing else.
var guestWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

func newService(t *testing.T) (*binfs.Service, string) {
	t.Helper()
	root := t.TempDir()
	log := logging.Discard()
	return binfs.New(
		locator.NewResolver(nil, log),
		storage.NewWithDriver(fsdriver.New(root)),
		log,
	), root
}

func newRuntime(t *testing.T) wazero.Runtime {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })
	return rt
}

func newGuest(t *testing.T, rt wazero.Runtime) api.Module {
	t.Helper()
	mod, err := rt.InstantiateWithConfig(context.Background(), guestWasm, wazero.NewModuleConfig().WithName("guest"))
	require.NoError(t, err)
	return mod
}

func put(t *testing.T, m api.Module, ptr uint32, data []byte) {
	t.Helper()
	require.True(t, m.Memory().Write(ptr, data))
}

func get(t *testing.T, m api.Module, ptr, n uint32) []byte {
	t.Helper()
	b, ok := m.Memory().Read(ptr, n)
	require.True(t, ok)
	return append([]byte(nil), b...)
}

func u32At(t *testing.T, m api.Module, ptr uint32) uint32 {
	t.Helper()
	v, ok := m.Memory().ReadUint32Le(ptr)
	require.True(t, ok)
	return v
}

func stackOf(args ...uint32) []uint64 {
	out := make([]uint64, len(args))
	for i, a := range args {
		out[i] = api.EncodeU32(a)
	}
	return out
}

func TestInstall(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	rt := newRuntime(t)
	inst := NewInstaller(svc, logging.Discard())

	st, err := inst.State(rt)
	require.NoError(t, err)
	assert.Equal(t, StateUninstalled, st)

	b, err := inst.Install(ctx, rt)
	require.NoError(t, err)
	require.NotNil(t, rt.Module(ModuleName))
	assert.Equal(t, []string{"exists", "size", "read", "write"}, b.Functions())
	for _, name := range b.Functions() {
		assert.NotNil(t, b.Module().ExportedFunction(name), name)
	}

	st, err = inst.State(rt)
	require.NoError(t, err)
	assert.Equal(t, StateInstalled, st)

	_, err = inst.Install(ctx, rt)
	assert.ErrorIs(t, err, fserrors.ErrAlreadyInstalled)
	st, _ = inst.State(rt)
	assert.Equal(t, StateInstalled, st)
}

func TestInstall_DebugRuntime(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	rt := Debug(newRuntime(t))
	inst := NewInstaller(svc, logging.Discard())

	_, err := inst.Install(ctx, rt)
	require.ErrorIs(t, err, fserrors.ErrBridgeUnavailable)

	st, stErr := inst.State(rt)
	assert.Equal(t, StateFailed, st)
	assert.ErrorIs(t, stErr, fserrors.ErrBridgeUnavailable)

	_, again := inst.Install(ctx, rt)
	assert.ErrorIs(t, again, fserrors.ErrBridgeUnavailable)
	assert.NotErrorIs(t, again, fserrors.ErrAlreadyInstalled)
}

func TestInstall_NilRuntime(t *testing.T) {
	svc, _ := newService(t)
	inst := NewInstaller(svc, logging.Discard())
	_, err := inst.Install(context.Background(), nil)
	assert.ErrorIs(t, err, fserrors.ErrBridgeUnavailable)
}

func TestInstall_NameTaken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	rt := newRuntime(t)
	_, err := rt.NewHostModuleBuilder(ModuleName).Instantiate(ctx)
	require.NoError(t, err)

	inst := NewInstaller(svc, logging.Discard())
	_, err = inst.Install(ctx, rt)
	require.ErrorIs(t, err, fserrors.ErrBridgeUnavailable)
	st, _ := inst.State(rt)
	assert.Equal(t, StateFailed, st)
}

func TestHost_WriteReadExists(t *testing.T) {
	ctx := context.Background()
	svc, root := newService(t)
	rt := newRuntime(t)
	guest := newGuest(t, rt)
	h := &host{ops: svc, log: logging.Discard()}
	log := logging.Discard()

	put(t, guest, 0, []byte("a.bin"))
	put(t, guest, 64, []byte{1, 2, 3})
	status := h.write(ctx, log, guest, stackOf(0, 5, 64, 3, 0, 0, 256, 512, 1024))
	require.Equal(t, StatusOK, status, StatusText(status))

	n := u32At(t, guest, 1024)
	loc := string(get(t, guest, 256, n))
	assert.Equal(t, locator.FromPath(filepath.Join(root, "a.bin")).String(), loc)

	put(t, guest, 2048, []byte(loc))
	locLen := uint32(len(loc))

	// read(loc, chunk=2, offset=1)
	status = h.read(ctx, log, guest, stackOf(2048, locLen, 2, 1, 0, 4096, 16, 4200))
	require.Equal(t, StatusOK, status, StatusText(status))
	assert.Equal(t, uint32(2), u32At(t, guest, 4200))
	assert.Equal(t, uint32(0), u32At(t, guest, 4204))
	assert.Equal(t, []byte{2, 3}, get(t, guest, 4096, 2))

	// append then read everything
	put(t, guest, 64, []byte{4, 5})
	status = h.write(ctx, log, guest, stackOf(0, 5, 64, 2, 0, WriteAppend, 256, 512, 1024))
	require.Equal(t, StatusOK, status)

	status = h.read(ctx, log, guest, stackOf(2048, locLen, 0, 0, ReadAll, 4096, 16, 4200))
	require.Equal(t, StatusOK, status)
	assert.Equal(t, uint32(5), u32At(t, guest, 4200))
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, get(t, guest, 4096, 5))

	assert.Equal(t, StatusPresent, h.exists(ctx, log, guest, stackOf(2048, locLen)))

	status = h.size(ctx, log, guest, stackOf(2048, locLen, 8192))
	require.Equal(t, StatusOK, status)
	assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(get(t, guest, 8192, 8)))

	missing := locator.FromPath(filepath.Join(root, "missing.bin")).String()
	put(t, guest, 12288, []byte(missing))
	ml := uint32(len(missing))
	assert.Equal(t, StatusAbsent, h.exists(ctx, log, guest, stackOf(12288, ml)))
	assert.Equal(t, StatusNotFound, h.size(ctx, log, guest, stackOf(12288, ml, 8192)))
	assert.Equal(t, StatusNotFound, h.read(ctx, log, guest, stackOf(12288, ml, 4, 0, 0, 4096, 16, 4200)))
}

func TestHost_BufferTooSmall(t *testing.T) {
	ctx := context.Background()
	svc, root := newService(t)
	rt := newRuntime(t)
	guest := newGuest(t, rt)
	h := &host{ops: svc, log: logging.Discard()}
	log := logging.Discard()

	put(t, guest, 0, []byte("b.bin"))
	put(t, guest, 64, []byte{9, 9, 9})

	status := h.write(ctx, log, guest, stackOf(0, 5, 64, 3, 0, 0, 256, 4, 1024))
	require.Equal(t, StatusBufferTooSmall, status)
	want := locator.FromPath(filepath.Join(root, "b.bin")).String()
	assert.Equal(t, uint32(len(want)), u32At(t, guest, 1024))
	_, err := os.Stat(filepath.Join(root, "b.bin"))
	assert.True(t, os.IsNotExist(err), "nothing may be written when the locator does not fit")

	status = h.write(ctx, log, guest, stackOf(0, 5, 64, 3, 0, 0, 256, 512, 1024))
	require.Equal(t, StatusOK, status)

	put(t, guest, 2048, []byte(want))
	status = h.read(ctx, log, guest, stackOf(2048, uint32(len(want)), 0, 0, ReadAll, 4096, 1, 4200))
	require.Equal(t, StatusBufferTooSmall, status)
	assert.Equal(t, uint32(3), u32At(t, guest, 4200))
	assert.Equal(t, []byte{0}, get(t, guest, 4096, 1))
}

func TestHost_ErrorStatuses(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	rt := newRuntime(t)
	guest := newGuest(t, rt)
	h := &host{ops: svc, log: logging.Discard()}
	log := logging.Discard()

	put(t, guest, 0, []byte("not a locator"))
	assert.Equal(t, StatusInvalidLocator, h.exists(ctx, log, guest, stackOf(0, 13)))

	// locator range past the end of one page
	assert.Equal(t, StatusMemoryAccessFailed, h.exists(ctx, log, guest, stackOf(65530, 10)))
	assert.Equal(t, StatusMemoryAccessFailed, h.read(ctx, log, guest, stackOf(0, 13, 1, 0, 0, 65535, 16, 0)))

	put(t, guest, 0, []byte("../x"))
	assert.Equal(t, StatusInvalidDestination, h.write(ctx, log, guest, stackOf(0, 4, 64, 0, 0, 0, 256, 512, 1024)))

	put(t, guest, 0, []byte("c.bin"))
	put(t, guest, 64, []byte{0xff, 0xff, 0xff})
	assert.Equal(t, StatusInvalidPayload, h.write(ctx, log, guest, stackOf(0, 5, 64, 3, 100, WriteCompressed, 256, 512, 1024)))
}

func TestHost_NoGuestMemory(t *testing.T) {
	svc, _ := newService(t)
	h := &host{ops: svc, log: logging.Discard()}
	assert.Equal(t, StatusMemoryAccessFailed, h.exists(context.Background(), logging.Discard(), nil, stackOf(0, 0)))
}

type panicOps struct{ Ops }

func (panicOps) Exists(context.Context, string) (bool, error) { panic("boom") }

func TestWrap_RecoversPanic(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	guest := newGuest(t, rt)
	h := &host{ops: panicOps{}, log: logging.Discard()}

	put(t, guest, 0, []byte("file:///tmp/x"))
	stack := stackOf(0, 13)
	fn := h.wrap("exists", h.exists)
	assert.NotPanics(t, func() { fn(ctx, guest, stack) })
	assert.Equal(t, StatusIOError, api.DecodeU32(stack[0]))
}

type callIDOps struct {
	Ops
	seen string
}

func (o *callIDOps) Exists(ctx context.Context, _ string) (bool, error) {
	o.seen = logging.CallIDFrom(ctx)
	return true, nil
}

func TestWrap_PassesCallID(t *testing.T) {
	rt := newRuntime(t)
	guest := newGuest(t, rt)
	ops := &callIDOps{}
	h := &host{ops: ops, log: logging.Discard()}

	put(t, guest, 0, []byte("file:///tmp/x"))
	stack := stackOf(0, 13)
	h.wrap("exists", h.exists)(context.Background(), guest, stack)
	assert.Equal(t, StatusPresent, api.DecodeU32(stack[0]))
	assert.Len(t, ops.seen, 26, "ulid call id")
}

func TestStatusOf(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want uint32
	}{
		{nil, StatusOK},
		{fserrors.ErrInvalidLocator, StatusInvalidLocator},
		{fserrors.ErrInvalidRange, StatusInvalidRange},
		{fserrors.ErrInvalidDestination, StatusInvalidDestination},
		{fserrors.ErrInvalidPayload, StatusInvalidPayload},
		{fserrors.Classify("open", os.ErrNotExist), StatusNotFound},
		{fserrors.Classify("open", os.ErrPermission), StatusPermissionDenied},
		{fserrors.ErrStorageUnavailable, StatusStorageUnavailable},
		{fserrors.ErrBridgeUnavailable, StatusBridgeUnavailable},
		{errors.New("plain"), StatusIOError},
	} {
		assert.Equal(t, tt.want, statusOf(tt.err), "err=%v", tt.err)
	}
	assert.Equal(t, "buffer too small", StatusText(StatusBufferTooSmall))
	assert.Equal(t, "status(7)", StatusText(7))
}

func TestDispatcher(t *testing.T) {
	svc, root := newService(t)
	d := NewDispatcher(context.Background(), svc, 4, logging.Discard())

	var mu sync.Mutex
	locs := map[string]string{}
	for _, name := range []string{"a.bin", "b.bin", "c.bin", "d.bin", "e.bin"} {
		d.Write(binfs.WriteRequest{Name: name, Payload: []byte(name)}, func(loc string, err error) {
			assert.NoError(t, err)
			mu.Lock()
			locs[name] = loc
			mu.Unlock()
		})
	}
	d.Wait()
	require.Len(t, locs, 5)

	d.Read(binfs.ReadRequest{Locator: locs["c.bin"], ReadAll: true}, func(res binfs.ReadResult, err error) {
		assert.NoError(t, err)
		assert.Equal(t, []byte("c.bin"), res.Data)
	})
	d.Exists(locator.FromPath(filepath.Join(root, "zzz")).String(), func(ok bool, err error) {
		assert.NoError(t, err)
		assert.False(t, ok)
	})
	d.Wait()
}

func TestDispatcher_Canceled(t *testing.T) {
	svc, root := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDispatcher(ctx, svc, 1, logging.Discard())

	var got error
	d.Write(binfs.WriteRequest{Name: "late.bin", Payload: []byte{1}}, func(_ string, err error) { got = err })
	d.Wait()
	assert.ErrorIs(t, got, context.Canceled)
	_, err := os.Stat(filepath.Join(root, "late.bin"))
	assert.True(t, os.IsNotExist(err))
}
