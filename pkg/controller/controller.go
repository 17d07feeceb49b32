// Package controller provides the per-client facade over pkg/job and
// pkg/cgroup: it provisions a client's system account and cgroup subtree,
// accepts start requests, indexes live jobs, and dispatches status/stop/
// output operations against them.
package controller

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cgroupjobs/pls/pkg/cgroup"
	"github.com/cgroupjobs/pls/pkg/job"
	"github.com/cgroupjobs/pls/pkg/logstream"
)

// BasePath is the default root of every client's job directory tree.
const BasePath = "/tmp/pls/clients"

// BaseCGroupPath is the default root of the cgroup v2 hierarchy this
// package manages client subtrees under.
const BaseCGroupPath = "/sys/fs/cgroup"

// ErrJobNotFound reports that an operation named a job ID this controller
// has never seen.
var ErrJobNotFound = errors.New("controller: job not found")

// Controller is a per-client aggregate: the client's resolved uid/gid, its
// job and cgroup directory roots, and the set of jobs it has started.
type Controller struct {
	client ClientName
	uid    uint32
	gid    uint32

	jobDir    string
	cgroupDir string

	mu   sync.Mutex
	jobs map[job.ID]*job.Job
}

// New provisions client's system account if needed, creates its cgroup
// subtree idempotently, and enables cpu/memory/io controllers on it.
// New is safe to call more than once for the same client within a
// process: MkdirAll and EnableSubtree both tolerate being re-applied to an
// already-configured directory.
func New(client ClientName, basePath, baseCGroupPath string) (*Controller, error) {
	if basePath == "" {
		basePath = BasePath
	}
	if baseCGroupPath == "" {
		baseCGroupPath = BaseCGroupPath
	}

	uid, gid, err := ensureAccount(client, 0)
	if err != nil {
		return nil, err
	}

	jobDir := filepath.Join(basePath, client.String())
	if err := os.MkdirAll(jobDir, 0o750); err != nil {
		return nil, fmt.Errorf("controller: create client job dir: %w", err)
	}

	cgroupDir := filepath.Join(baseCGroupPath, client.String())
	if err := os.MkdirAll(cgroupDir, 0o750); err != nil {
		return nil, fmt.Errorf("controller: create client cgroup dir: %w", err)
	}
	if err := cgroup.EnableSubtree(cgroupDir, cgroup.Controllers); err != nil {
		return nil, fmt.Errorf("controller: enable client cgroup subtree: %w", err)
	}

	return &Controller{
		client:    client,
		uid:       uid,
		gid:       gid,
		jobDir:    jobDir,
		cgroupDir: cgroupDir,
		jobs:      make(map[job.ID]*job.Job),
	}, nil
}

// Start mints a job ID, prepares its job and cgroup directories, writes
// req's resource limits into the job's cgroup, runs the job builder
// pipeline, and indexes the resulting Job under its ID.
func (c *Controller) Start(req *job.Request) (job.ID, error) {
	id := job.NewID()

	jobDir := filepath.Join(c.jobDir, id.String())
	if err := os.MkdirAll(jobDir, 0o750); err != nil {
		return job.ID{}, fmt.Errorf("controller: create job dir: %w", err)
	}

	jobCgroupDir := filepath.Join(c.cgroupDir, id.String())
	if err := os.MkdirAll(jobCgroupDir, 0o750); err != nil {
		return job.ID{}, fmt.Errorf("controller: create job cgroup dir: %w", err)
	}

	if err := cgroup.SetCPUControl(jobCgroupDir, req.Limits); err != nil {
		return job.ID{}, fmt.Errorf("controller: set cpu control: %w", err)
	}
	if err := cgroup.SetMemControl(jobCgroupDir, req.Limits); err != nil {
		return job.ID{}, fmt.Errorf("controller: set mem control: %w", err)
	}
	if err := cgroup.SetIOControl(jobCgroupDir, req.Limits); err != nil {
		return job.ID{}, fmt.Errorf("controller: set io control: %w", err)
	}

	b := job.NewBuilder(id)
	if err := b.AddCommand(req); err != nil {
		return job.ID{}, err
	}
	if err := b.AddToCgroup(jobCgroupDir); err != nil {
		return job.ID{}, err
	}
	if err := b.SetOwnership(c.uid, c.gid); err != nil {
		return job.ID{}, err
	}
	if err := b.SetJobDir(jobDir); err != nil {
		return job.ID{}, err
	}

	j, err := b.Spawn()
	if err != nil {
		return job.ID{}, err
	}

	c.mu.Lock()
	c.jobs[id] = j
	c.mu.Unlock()

	return id, nil
}

// Status reports j's current disposition. If the job is not yet complete,
// it reports PhaseRunning regardless of any transient value the underlying
// status cell may already hold, matching the "incomplete jobs omit the
// outcome" rule: a caller that wants to know whether a job has stopped
// checks completeness, not the decoded phase alone.
func (c *Controller) Status(id job.ID) (job.Status, error) {
	j, err := c.get(id)
	if err != nil {
		return job.Status{}, err
	}
	if !j.IsComplete() {
		return job.Status{Phase: job.PhaseRunning}, nil
	}
	return j.Status(), nil
}

// Stop requests cancellation of id's job. Stopping an unknown or
// already-stopped job is a no-op that still succeeds.
func (c *Controller) Stop(id job.ID) error {
	j, err := c.get(id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil
		}
		return err
	}
	j.Stop()
	return nil
}

// Output returns a channel of logstream.Message carrying id's stdout and
// stderr, live or replayed depending on whether the job has finished.
func (c *Controller) Output(id job.ID) (<-chan logstream.Message, error) {
	j, err := c.get(id)
	if err != nil {
		return nil, err
	}
	return logstream.Output(j), nil
}

func (c *Controller) get(id job.ID) (*job.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	j, ok := c.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j, nil
}
