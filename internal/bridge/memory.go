package bridge

import (
	"github.com/tetratelabs/wazero/api"
)

// guestMemory wraps the caller's linear memory. Every accessor reports
// false instead of panicking when the range is out of bounds or the
// guest has no memory at all.
type guestMemory struct {
	mem api.Memory
}

func memoryOf(m api.Module) (guestMemory, bool) {
	if m == nil {
		return guestMemory{}, false
	}
	mem := m.Memory()
	if mem == nil {
		return guestMemory{}, false
	}
	return guestMemory{mem: mem}, true
}

// fits reports whether [ptr, ptr+n) lies inside memory.
func (g guestMemory) fits(ptr, n uint32) bool {
	return uint64(ptr)+uint64(n) <= uint64(g.mem.Size())
}

// bytes copies [ptr, ptr+n) out of guest memory.
func (g guestMemory) bytes(ptr, n uint32) ([]byte, bool) {
	if n == 0 {
		return []byte{}, g.fits(ptr, 0)
	}
	view, ok := g.mem.Read(ptr, n)
	if !ok {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, view)
	return out, true
}

func (g guestMemory) string(ptr, n uint32) (string, bool) {
	if n == 0 {
		return "", g.fits(ptr, 0)
	}
	view, ok := g.mem.Read(ptr, n)
	if !ok {
		return "", false
	}
	return string(view), true
}

func (g guestMemory) write(ptr uint32, data []byte) bool {
	if len(data) == 0 {
		return g.fits(ptr, 0)
	}
	return g.mem.Write(ptr, data)
}

func (g guestMemory) u32(ptr, v uint32) bool {
	return g.mem.WriteUint32Le(ptr, v)
}

func (g guestMemory) u64(ptr uint32, v uint64) bool {
	return g.mem.WriteUint64Le(ptr, v)
}
