// Package stackstring provides a fixed-capacity byte buffer for rendering
// small values — pids, exit codes, cgroup limits. The backing storage is
// allocated once, at the requested capacity, when a Buffer is built and never
// grows; building a Buffer and calling String are not allocation-free.
//
// Go's os/exec has no equivalent of Rust's Command::pre_exec, so nothing in
// this module runs between fork and exec. The buffer still earns its keep:
// the cgroup driver renders integers into it before a single os.WriteFile
// call, and the job builder precomputes the cgroup.procs path into one
// during the AddToCgroup stage, matching the stage contract this type was
// named for.
package stackstring

import (
	"fmt"
	"path/filepath"
)

// Buffer is a fixed-capacity byte buffer. The zero value is not usable; use
// NewText or NewInt32.
type Buffer struct {
	buf []byte
	len int
}

// Error reports that data did not fit into a Buffer of the requested
// capacity.
type Error struct {
	Len, Cap int
}

func (e *Error) Error() string {
	return fmt.Sprintf("supplied data (len:%d) won't fit into buffer (len:%d)", e.Len, e.Cap)
}

// NewText copies s into a Buffer of the given capacity. It fails with *Error
// if len(s) exceeds cap.
func NewText(s string, cap int) (*Buffer, error) {
	if len(s) > cap {
		return nil, &Error{Len: len(s), Cap: cap}
	}
	b := &Buffer{buf: make([]byte, cap), len: len(s)}
	copy(b.buf, s)
	return b, nil
}

// minInt32BufCap is the smallest capacity that can hold any int32 rendered as
// ASCII decimal: 10 digits plus a leading '-'.
const minInt32BufCap = 11

// NewInt32 renders v as ASCII decimal into a Buffer of the given capacity.
// It panics if cap < 11, since int32 rendering is infallible in that range
// and a smaller capacity is a programmer error, not a runtime condition.
func NewInt32(v int32, cap int) *Buffer {
	if cap < minInt32BufCap {
		panic(fmt.Sprintf("stackstring: NewInt32 requires cap >= %d, got %d", minInt32BufCap, cap))
	}

	b := &Buffer{buf: make([]byte, cap)}
	b.len = serializeInt32(v, b.buf)
	return b
}

// serializeInt32 writes the ASCII decimal rendering of v into buf, which
// must have length >= 11, and returns the number of bytes written.
func serializeInt32(v int32, buf []byte) int {
	if v == 0 {
		buf[0] = '0'
		return 1
	}

	neg := v < 0
	abs := int64(v)
	if neg {
		abs = -abs
	}

	var tmp [10]byte
	n := 0
	for abs > 0 {
		tmp[n] = byte('0' + abs%10)
		abs /= 10
		n++
	}

	cursor := 0
	if neg {
		buf[cursor] = '-'
		cursor++
	}
	for i := n - 1; i >= 0; i-- {
		buf[cursor] = tmp[i]
		cursor++
	}

	return cursor
}

// Bytes returns the buffer's content.
func (b *Buffer) Bytes() []byte {
	return b.buf[:b.len]
}

// String returns the buffer's content as a string.
func (b *Buffer) String() string {
	if b.len == 0 {
		return ""
	}
	return string(b.buf[:b.len])
}

// Path returns the buffer's content interpreted as a filesystem path.
func (b *Buffer) Path() string {
	return filepath.FromSlash(b.String())
}
