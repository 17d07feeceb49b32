package job

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDStringIsLowercaseHexNoSeparators(t *testing.T) {
	t.Parallel()

	id := NewID()
	s := id.String()

	assert.Len(t, s, 32)
	for _, r := range s {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'), "unexpected rune %q", r)
	}
}

func TestParseIDRoundTrips(t *testing.T) {
	t.Parallel()

	id := NewID()
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseIDRejectsWrongLength(t *testing.T) {
	t.Parallel()

	_, err := ParseID("too-short")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestParseIDRejectsNonHex(t *testing.T) {
	t.Parallel()

	_, err := ParseID("zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestDecodeExitCleanExit(t *testing.T) {
	t.Parallel()

	got := decodeExit(nil, nil)
	assert.Equal(t, Status{Phase: PhaseExited, Code: 0}, got)
}

func TestDecodeExitNonZeroCode(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("/bin/sh", "-c", "exit 7")
	runErr := cmd.Run()
	require.Error(t, runErr)
	require.Equal(t, 7, cmd.ProcessState.ExitCode())

	got := decodeExit(cmd.ProcessState, runErr)
	assert.Equal(t, Status{Phase: PhaseExited, Code: 7}, got)
}

func TestStatusStringFormatsTerminalPhases(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "running", Status{Phase: PhaseRunning}.String())
	assert.Equal(t, "exited(7)", Status{Phase: PhaseExited, Code: 7}.String())
	assert.Equal(t, "signaled(9)", Status{Phase: PhaseSignaled, Code: 9}.String())
}
