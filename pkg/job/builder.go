package job

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/cgroupjobs/pls/pkg/stackstring"
)

// Builder assembles a child process through a fixed sequence of stages —
// AddCommand, AddToCgroup, SetOwnership, SetJobDir, Spawn — mirroring the
// linear type-state pipeline a language with phantom types would enforce at
// compile time. Go has none, so completeness is tracked at runtime as a
// bitmask; calling a stage out of order or calling Spawn early is a
// programmer error, reported as ErrBuilderStageOrder / ErrBuilderIncomplete
// rather than a condition callers are expected to recover from.
//
// The zero value is not usable; use NewBuilder.
type Builder struct {
	id  ID
	cmd *exec.Cmd

	stdout, stderr io.ReadCloser

	jobDir    string
	cgroupDir string

	cgroupDirFile *os.File

	mask stage
}

type stage uint8

const (
	stageCommand stage = 1 << iota
	stageCgroup
	stageOwnership
	stageJobDir

	stageAll = stageCommand | stageCgroup | stageOwnership | stageJobDir
)

// ErrBuilderStageOrder reports that a builder stage was called before its
// predecessor, or was called a second time.
var ErrBuilderStageOrder = errors.New("job: builder stage called out of order")

// ErrBuilderIncomplete reports that Spawn was called before all four
// preceding stages completed.
var ErrBuilderIncomplete = errors.New("job: spawn called on an incomplete builder")

// NewBuilder starts a new builder for the job identified by id.
func NewBuilder(id ID) *Builder {
	return &Builder{id: id}
}

// AddCommand is the first stage: it prepares req.Executable to run with
// req.Args, stdout and stderr piped for the supervisor to capture, and
// stdin inherited from this process.
func (b *Builder) AddCommand(req *Request) error {
	if b.mask != 0 {
		return fmt.Errorf("%w: AddCommand must be the first stage", ErrBuilderStageOrder)
	}

	cmd := exec.Command(req.Executable, req.Args...)
	cmd.Stdin = os.Stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("job: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("job: stderr pipe: %w", err)
	}

	b.cmd = cmd
	b.stdout = stdout
	b.stderr = stderr
	b.mask |= stageCommand
	return nil
}

// AddToCgroup is the second stage: it opens cgroupDir and arranges for the
// kernel to place the child into that cgroup atomically at clone time
// (CLONE_INTO_CGROUP), so there is no window in which the child runs
// unconfined. It also precomputes the job's cgroup.procs path into a fixed
// buffer, mirroring the precomputation the original pre_exec-hook design
// performed, even though the join itself no longer writes that file by
// hand — see DESIGN.md.
func (b *Builder) AddToCgroup(cgroupDir string) error {
	if b.mask != stageCommand {
		return fmt.Errorf("%w: AddToCgroup must follow AddCommand", ErrBuilderStageOrder)
	}

	if _, err := stackstring.NewText(filepath.Join(cgroupDir, "cgroup.procs"), 256); err != nil {
		return fmt.Errorf("job: cgroup.procs path: %w", err)
	}

	f, err := os.Open(cgroupDir)
	if err != nil {
		return fmt.Errorf("job: open cgroup dir: %w", err)
	}

	if b.cmd.SysProcAttr == nil {
		b.cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	b.cmd.SysProcAttr.UseCgroupFD = true
	b.cmd.SysProcAttr.CgroupFD = int(f.Fd())

	b.cgroupDirFile = f
	b.cgroupDir = cgroupDir
	b.mask |= stageCgroup
	return nil
}

// SetOwnership is the third stage: it arranges for the Go runtime to apply
// setgid(gid) then setuid(uid) in the forked child before exec, dropping the
// child's privileges to the client's account.
func (b *Builder) SetOwnership(uid, gid uint32) error {
	if b.mask != stageCommand|stageCgroup {
		return fmt.Errorf("%w: SetOwnership must follow AddToCgroup", ErrBuilderStageOrder)
	}

	if b.cmd.SysProcAttr == nil {
		b.cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	b.cmd.SysProcAttr.Credential = &syscall.Credential{Uid: uid, Gid: gid}

	b.mask |= stageOwnership
	return nil
}

// SetJobDir is the fourth stage: it sets the child's working directory.
func (b *Builder) SetJobDir(jobDir string) error {
	if b.mask != stageCommand|stageCgroup|stageOwnership {
		return fmt.Errorf("%w: SetJobDir must follow SetOwnership", ErrBuilderStageOrder)
	}

	b.cmd.Dir = jobDir
	b.jobDir = jobDir
	b.mask |= stageJobDir
	return nil
}

// Spawn is the final stage: it starts the child and hands it to a
// supervisor goroutine, returning the running Job.
func (b *Builder) Spawn() (*Job, error) {
	if b.mask != stageAll {
		return nil, fmt.Errorf("%w", ErrBuilderIncomplete)
	}

	outFile, err := os.OpenFile(filepath.Join(b.jobDir, "out"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("job: open out file: %w", err)
	}
	errFile, err := os.OpenFile(filepath.Join(b.jobDir, "err"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		outFile.Close()
		return nil, fmt.Errorf("job: open err file: %w", err)
	}

	startErr := b.cmd.Start()
	if b.cgroupDirFile != nil {
		b.cgroupDirFile.Close()
	}
	if startErr != nil {
		outFile.Close()
		errFile.Close()
		return nil, fmt.Errorf("job: start: %w", startErr)
	}

	j := newJob(b.id, b.cmd, outFile, errFile, b.jobDir, b.cgroupDir)
	go j.supervise(b.stdout, b.stderr)
	return j, nil
}
