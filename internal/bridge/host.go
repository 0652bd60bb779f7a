package bridge

import (
	"context"
	"log/slog"

	"github.com/DanikLP1/binaryfs/internal/binfs"
	"github.com/tetratelabs/wazero/api"
)

type host struct {
	ops Ops
	log *slog.Logger
}

type binding struct {
	name       string
	paramNames []string
	params     []api.ValueType
	impl       func(h *host) bindingFunc
}

func i32s(n int) []api.ValueType {
	out := make([]api.ValueType, n)
	for i := range out {
		out[i] = api.ValueTypeI32
	}
	return out
}

var bindings = []binding{
	{
		name:       "exists",
		paramNames: []string{"loc_ptr", "loc_len"},
		params:     i32s(2),
		impl:       func(h *host) bindingFunc { return h.exists },
	},
	{
		name:       "size",
		paramNames: []string{"loc_ptr", "loc_len", "out_ptr"},
		params:     i32s(3),
		impl:       func(h *host) bindingFunc { return h.size },
	},
	{
		name:       "read",
		paramNames: []string{"loc_ptr", "loc_len", "chunk_size", "offset", "flags", "out_ptr", "out_cap", "info_ptr"},
		params:     i32s(8),
		impl:       func(h *host) bindingFunc { return h.read },
	},
	{
		name:       "write",
		paramNames: []string{"name_ptr", "name_len", "data_ptr", "data_len", "original_size", "flags", "out_ptr", "out_cap", "out_len_ptr"},
		params:     i32s(9),
		impl:       func(h *host) bindingFunc { return h.write },
	},
}

func arg(stack []uint64, i int) uint32 { return api.DecodeU32(stack[i]) }

// exists(loc_ptr, loc_len) -> 0 absent | 1 present | status
func (h *host) exists(ctx context.Context, log *slog.Logger, m api.Module, stack []uint64) uint32 {
	mem, ok := memoryOf(m)
	if !ok {
		return StatusMemoryAccessFailed
	}
	loc, ok := mem.string(arg(stack, 0), arg(stack, 1))
	if !ok {
		return StatusMemoryAccessFailed
	}
	found, err := h.ops.Exists(ctx, loc)
	if err != nil {
		log.Debug("exists.fail", "locator", loc, "err", err)
		return statusOf(err)
	}
	if found {
		return StatusPresent
	}
	return StatusAbsent
}

// size(loc_ptr, loc_len, out_ptr) -> status; *out_ptr = u64 size
func (h *host) size(ctx context.Context, log *slog.Logger, m api.Module, stack []uint64) uint32 {
	mem, ok := memoryOf(m)
	if !ok {
		return StatusMemoryAccessFailed
	}
	loc, ok := mem.string(arg(stack, 0), arg(stack, 1))
	if !ok {
		return StatusMemoryAccessFailed
	}
	outPtr := arg(stack, 2)
	if !mem.fits(outPtr, 8) {
		return StatusMemoryAccessFailed
	}
	entry, err := h.ops.Stat(ctx, loc)
	if err != nil {
		log.Debug("size.fail", "locator", loc, "err", err)
		return statusOf(err)
	}
	if !mem.u64(outPtr, uint64(entry.Size)) {
		return StatusMemoryAccessFailed
	}
	return StatusOK
}

// read(loc_ptr, loc_len, chunk_size, offset, flags, out_ptr, out_cap, info_ptr) -> status
//
// info_ptr receives {u32 length, u32 flags}. When the result does not
// fit in out_cap the status is StatusBufferTooSmall and length holds the
// size the guest has to provide.
func (h *host) read(ctx context.Context, log *slog.Logger, m api.Module, stack []uint64) uint32 {
	mem, ok := memoryOf(m)
	if !ok {
		return StatusMemoryAccessFailed
	}
	loc, ok := mem.string(arg(stack, 0), arg(stack, 1))
	if !ok {
		return StatusMemoryAccessFailed
	}
	chunk, offset, flags := arg(stack, 2), arg(stack, 3), arg(stack, 4)
	outPtr, outCap, infoPtr := arg(stack, 5), arg(stack, 6), arg(stack, 7)
	if !mem.fits(outPtr, outCap) || !mem.fits(infoPtr, 8) {
		return StatusMemoryAccessFailed
	}

	res, err := h.ops.Read(ctx, binfs.ReadRequest{
		Locator:   loc,
		ChunkSize: int64(chunk),
		Offset:    int64(offset),
		ReadAll:   flags&ReadAll != 0,
		Compress:  flags&ReadCompress != 0,
	})
	if err != nil {
		log.Debug("read.fail", "locator", loc, "err", err)
		return statusOf(err)
	}

	var resultFlags uint32
	if res.Compressed {
		resultFlags |= ResultCompressed
	}
	n := uint64(len(res.Data))
	if n > uint64(outCap) {
		if n > uint64(^uint32(0)) {
			n = uint64(^uint32(0))
		}
		_ = mem.u32(infoPtr, uint32(n))
		_ = mem.u32(infoPtr+4, resultFlags)
		return StatusBufferTooSmall
	}
	if !mem.write(outPtr, res.Data) || !mem.u32(infoPtr, uint32(n)) || !mem.u32(infoPtr+4, resultFlags) {
		return StatusMemoryAccessFailed
	}
	return StatusOK
}

// write(name_ptr, name_len, data_ptr, data_len, original_size, flags, out_ptr, out_cap, out_len_ptr) -> status
//
// The locator is computed and checked against out_cap before anything
// touches disk, so a non-OK status always means nothing was written.
func (h *host) write(ctx context.Context, log *slog.Logger, m api.Module, stack []uint64) uint32 {
	mem, ok := memoryOf(m)
	if !ok {
		return StatusMemoryAccessFailed
	}
	name, ok := mem.string(arg(stack, 0), arg(stack, 1))
	if !ok {
		return StatusMemoryAccessFailed
	}
	payload, ok := mem.bytes(arg(stack, 2), arg(stack, 3))
	if !ok {
		return StatusMemoryAccessFailed
	}
	originalSize, flags := arg(stack, 4), arg(stack, 5)
	outPtr, outCap, outLenPtr := arg(stack, 6), arg(stack, 7), arg(stack, 8)
	if !mem.fits(outPtr, outCap) || !mem.fits(outLenPtr, 4) {
		return StatusMemoryAccessFailed
	}

	want, err := h.ops.Locate(name)
	if err != nil {
		log.Debug("write.locate_fail", "name", name, "err", err)
		return statusOf(err)
	}
	if uint64(len(want)) > uint64(outCap) {
		_ = mem.u32(outLenPtr, uint32(len(want)))
		return StatusBufferTooSmall
	}

	loc, err := h.ops.Write(ctx, binfs.WriteRequest{
		Name:         name,
		Payload:      payload,
		Append:       flags&WriteAppend != 0,
		Compressed:   flags&WriteCompressed != 0,
		OriginalSize: int64(originalSize),
	})
	if err != nil {
		return statusOf(err)
	}
	// loc == want, and both ranges were bounds-checked above
	_ = mem.write(outPtr, []byte(loc))
	_ = mem.u32(outLenPtr, uint32(len(loc)))
	return StatusOK
}
