package job

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
)

// Job is one spawned child together with its supervisor, status cell,
// cancel signal, output files, and cgroup membership. A Job is obtained
// only from Builder.Spawn and is owned by whichever Controller started it.
type Job struct {
	id  ID
	cmd *exec.Cmd

	out, err *os.File

	jobDir    string
	cgroupDir string

	cancel     chan struct{}
	cancelOnce sync.Once

	status atomic.Pointer[Status]
	done   chan struct{}
}

func newJob(id ID, cmd *exec.Cmd, out, err *os.File, jobDir, cgroupDir string) *Job {
	j := &Job{
		id:        id,
		cmd:       cmd,
		out:       out,
		err:       err,
		jobDir:    jobDir,
		cgroupDir: cgroupDir,
		cancel:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	running := Status{Phase: PhaseRunning}
	j.status.Store(&running)
	return j
}

// ID returns the job's identifier.
func (j *Job) ID() ID { return j.id }

// JobDir returns the on-disk directory containing this job's out/err files.
func (j *Job) JobDir() string { return j.jobDir }

// CgroupDir returns the cgroup v2 directory this job's child is a member
// of.
func (j *Job) CgroupDir() string { return j.cgroupDir }

// OutPath returns the path of the captured stdout file.
func (j *Job) OutPath() string { return filepath.Join(j.jobDir, "out") }

// ErrPath returns the path of the captured stderr file.
func (j *Job) ErrPath() string { return filepath.Join(j.jobDir, "err") }

// Status returns the job's current status. While the job is running this
// is always {PhaseRunning, 0}; once IsComplete is true it holds the
// terminal outcome and never changes again.
func (j *Job) Status() Status {
	return *j.status.Load()
}

// Done returns a channel that is closed exactly once, after the job's
// final status has been written. A receive from Done that was set up
// before or after the job completed observes the same close.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// IsComplete reports whether the job's supervisor has finished.
func (j *Job) IsComplete() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Stop requests cancellation of a running job. It is idempotent and
// asynchronous: repeated calls have the same effect as one, and it returns
// before the supervisor has necessarily observed the signal.
func (j *Job) Stop() {
	j.cancelOnce.Do(func() {
		close(j.cancel)
	})
}

// supervise owns the child from Spawn until it terminates or is cancelled.
// It copies stdout/stderr to the job's files concurrently, then waits for
// either a cancellation or the child's own exit, finalizing status exactly
// once before closing done.
//
// Go's os/exec has no single primitive that waits on "bytes available on
// stdout", "bytes available on stderr" and "process exited" as alternatives
// of one select the way an async runtime's multiway wait does; this runs
// the two copies as their own goroutines (mirroring one fd-copy task each)
// and selects over cancellation versus Wait, joining the copiers before
// finalizing so invariant 4 (flushed before status goes non-Running) holds
// regardless of which branch fires.
func (j *Job) supervise(stdout, stderr io.ReadCloser) {
	outDone := make(chan struct{})
	errDone := make(chan struct{})

	go func() {
		defer close(outDone)
		copyLogged(j.out, stdout, "stdout")
	}()
	go func() {
		defer close(errDone)
		copyLogged(j.err, stderr, "stderr")
	}()

	// Wait closes the stdout/stderr pipes, so it must not run until both
	// copiers have drained them to EOF.
	waitDone := make(chan error, 1)
	go func() {
		<-outDone
		<-errDone
		waitDone <- j.cmd.Wait()
	}()

	var final Status
	select {
	case <-j.cancel:
		if j.cmd.Process != nil {
			_ = j.cmd.Process.Signal(syscall.SIGKILL)
		}
		<-waitDone
		<-outDone
		<-errDone
		j.flush()
		final = Status{Phase: PhaseSignaled, Code: 9}
	case waitErr := <-waitDone:
		<-outDone
		<-errDone
		j.flush()
		final = decodeExit(j.cmd.ProcessState, waitErr)
	}

	j.status.Store(&final)
	close(j.done)
}

func (j *Job) flush() {
	if err := j.out.Sync(); err != nil {
		slog.Error("flush job stdout file", "job", j.id, "err", err)
	}
	if err := j.err.Sync(); err != nil {
		slog.Error("flush job stderr file", "job", j.id, "err", err)
	}
	j.out.Close()
	j.err.Close()
}

// copyLogged copies src to dst, logging and continuing on error rather
// than terminating the supervisor — a log-capture failure must not abort a
// running job.
func copyLogged(dst io.Writer, src io.Reader, stream string) {
	if _, err := io.Copy(dst, src); err != nil {
		slog.Error("job log copy failed", "stream", stream, "err", err)
	}
}

// decodeExit derives a terminal Status from cmd.Wait()'s return. A nil
// waitErr means clean exit(0). Otherwise it unwraps *exec.ExitError for the
// ProcessState, reads ExitCode(), and if that reports -1 (no normal exit)
// falls back to the platform wait status to recover a terminating signal.
func decodeExit(ps *os.ProcessState, waitErr error) Status {
	if waitErr == nil {
		return Status{Phase: PhaseExited, Code: 0}
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		ps = exitErr.ProcessState
	}

	if ps == nil {
		slog.Error("job wait failed with neither exit error nor process state", "err", waitErr)
		return Status{Phase: PhaseExited, Code: -1}
	}

	if code := ps.ExitCode(); code != -1 {
		return Status{Phase: PhaseExited, Code: int32(code)}
	}

	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return Status{Phase: PhaseSignaled, Code: int32(ws.Signal())}
	}

	slog.Error("job exited with neither an exit code nor a signal", "job", ps.Pid())
	return Status{Phase: PhaseExited, Code: -1}
}
