//go:build linux

// These scenarios exercise a real controller.New against a live cgroup v2
// filesystem and the system account database, mirroring spec.md §8's
// end-to-end scenarios 1-4 and 6. They require root (account provisioning
// via useradd, writing into /sys/fs/cgroup) and a cgroup v2 unified
// hierarchy with the cpu, memory and io controllers available on the test
// machine's root cgroup; both are skipped automatically when unavailable.
package controller

import (
	"os"
	"testing"
	"time"

	"github.com/cgroupjobs/pls/pkg/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireRootAndCgroupV2(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("requires root to provision client accounts and cgroups")
	}
	if _, err := os.Stat("/sys/fs/cgroup/cgroup.controllers"); err != nil {
		t.Skip("requires a mounted cgroup v2 unified hierarchy")
	}
}

func waitComplete(t *testing.T, c *Controller, id job.ID, timeout time.Duration) job.Status {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st, err := c.Status(id)
		require.NoError(t, err)
		if st.Phase != job.PhaseRunning {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not complete before timeout")
	return job.Status{}
}

func TestE2EEchoThenExit(t *testing.T) {
	requireRootAndCgroupV2(t)

	c, err := New("t1-echo", t.TempDir(), "/sys/fs/cgroup")
	require.NoError(t, err)

	id, err := c.Start(&job.Request{Executable: "/bin/echo", Args: []string{"hi"}})
	require.NoError(t, err)

	st := waitComplete(t, c, id, 5*time.Second)
	assert.Equal(t, job.PhaseExited, st.Phase)
	assert.EqualValues(t, 0, st.Code)

	out, err := c.Output(id)
	require.NoError(t, err)

	var stdout []byte
	for m := range out {
		if m.FD == 0 {
			stdout = append(stdout, m.Output...)
		}
	}
	assert.Contains(t, string(stdout), "hi")
}

func TestE2ENonZeroExit(t *testing.T) {
	requireRootAndCgroupV2(t)

	c, err := New("t1-exit7", t.TempDir(), "/sys/fs/cgroup")
	require.NoError(t, err)

	id, err := c.Start(&job.Request{Executable: "/bin/sh", Args: []string{"-c", "exit 7"}})
	require.NoError(t, err)

	st := waitComplete(t, c, id, 5*time.Second)
	assert.Equal(t, job.PhaseExited, st.Phase)
	assert.EqualValues(t, 7, st.Code)
}

func TestE2ECancelLongRunner(t *testing.T) {
	requireRootAndCgroupV2(t)

	c, err := New("t1-sleep", t.TempDir(), "/sys/fs/cgroup")
	require.NoError(t, err)

	id, err := c.Start(&job.Request{Executable: "/bin/sleep", Args: []string{"3600"}})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, c.Stop(id))

	st := waitComplete(t, c, id, 5*time.Second)
	assert.Equal(t, job.PhaseSignaled, st.Phase)
	assert.EqualValues(t, 9, st.Code)
}

func TestE2ELateSubscriberReplay(t *testing.T) {
	requireRootAndCgroupV2(t)

	c, err := New("t1-replay", t.TempDir(), "/sys/fs/cgroup")
	require.NoError(t, err)

	id, err := c.Start(&job.Request{Executable: "/bin/echo", Args: []string{"hi"}})
	require.NoError(t, err)

	waitComplete(t, c, id, 5*time.Second)

	out, err := c.Output(id)
	require.NoError(t, err)

	var stdout []byte
	for m := range out {
		if m.FD == 0 {
			stdout = append(stdout, m.Output...)
		}
	}
	assert.Contains(t, string(stdout), "hi")
}

func TestE2EUnknownID(t *testing.T) {
	requireRootAndCgroupV2(t)

	c, err := New("t1-unknown", t.TempDir(), "/sys/fs/cgroup")
	require.NoError(t, err)

	_, statusErr := c.Status(job.NewID())
	assert.ErrorIs(t, statusErr, ErrJobNotFound)

	_, outputErr := c.Output(job.NewID())
	assert.ErrorIs(t, outputErr, ErrJobNotFound)

	assert.NoError(t, c.Stop(job.NewID()))
}
