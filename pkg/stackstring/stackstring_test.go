package stackstring

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInt32(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   int32
		want string
	}{
		{"negative", -7123456, "-7123456"},
		{"positive", 123456, "123456"},
		{"negative zero", -0, "0"},
		{"positive zero", 0, "0"},
		{"min int32", -2147483648, "-2147483648"},
		{"max int32", 2147483647, "2147483647"},
		{"single digit", 7, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := NewInt32(tt.in, 11)
			assert.Equal(t, tt.want, b.String())

			// round-trip through strconv to confirm the numeric value survives
			n, err := strconv.ParseInt(b.String(), 10, 32)
			require.NoError(t, err)
			assert.Equal(t, int64(tt.in), n)
		})
	}
}

func TestNewInt32RoundTripsAllByte(t *testing.T) {
	t.Parallel()

	for i := -128; i <= 127; i++ {
		b := NewInt32(int32(i), 11)
		n, err := strconv.ParseInt(b.String(), 10, 32)
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}
}

func TestNewInt32PanicsOnUndersizedBuffer(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		NewInt32(123, 10)
	})
}

func TestNewText(t *testing.T) {
	t.Parallel()

	b, err := NewText("cgroup.procs", 256)
	require.NoError(t, err)
	assert.Equal(t, "cgroup.procs", b.String())
	assert.Equal(t, []byte("cgroup.procs"), b.Bytes())
}

func TestNewTextCapacityError(t *testing.T) {
	t.Parallel()

	input := "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua."

	_, err := NewText(input, 1)
	require.Error(t, err)

	var sizeErr *Error
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, len(input), sizeErr.Len)
	assert.Equal(t, 1, sizeErr.Cap)
	assert.Equal(t, "supplied data (len:123) won't fit into buffer (len:1)", err.Error())
}

func TestNewTextExactFit(t *testing.T) {
	t.Parallel()

	_, err := NewText("abc", 3)
	require.NoError(t, err)
}

func TestBufferPath(t *testing.T) {
	t.Parallel()

	b, err := NewText("/sys/fs/cgroup/acme/cgroup.procs", 256)
	require.NoError(t, err)
	assert.Equal(t, "/sys/fs/cgroup/acme/cgroup.procs", b.Path())
}
