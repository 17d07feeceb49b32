package job

import "github.com/cgroupjobs/pls/pkg/cgroup"

// Limits is the resource-limit tuple a Request may carry. It is the
// cgroup package's Limits type under the job package's own name, since the
// limits a job requests and the limits a cgroup directory enforces are the
// same value travelling from controller to cgroup driver.
type Limits = cgroup.Limits

// CPUControl, MemoryControl and IOLimit are re-exported under the job
// package's name for callers that construct a Request without otherwise
// needing to import pkg/cgroup directly.
type (
	CPUControl    = cgroup.CPUControl
	MemoryControl = cgroup.MemoryControl
	IOLimit       = cgroup.IOLimit
)

// Request describes a job to run: an executable, its arguments, and an
// optional set of resource limits.
type Request struct {
	Executable string
	Args       []string
	Limits     *Limits
}
