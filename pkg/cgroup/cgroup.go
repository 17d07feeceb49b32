// Package cgroup provides typed operations over a cgroup v2 directory:
// enumerating enabled controllers, enabling controllers on a subtree, and
// writing CPU weight, memory ceiling, and I/O bandwidth limits.
//
// Every operation here is a thin, validated wrapper around a handful of
// interface files under a cgroup v2 directory — cgroup.controllers,
// cgroup.subtree_control, cpu.weight, memory.high, memory.max, io.max. None
// of it requires a real kernel cgroup mount to unit test: writes go to
// whatever directory the caller names, so tests point it at a temp
// directory standing in for /sys/fs/cgroup.
package cgroup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cgroupjobs/pls/pkg/stackstring"
)

// Interface file names under a cgroup v2 directory.
const (
	ProcsFile     = "cgroup.procs"
	EnabledFile   = "cgroup.controllers"
	SubtreeFile   = "cgroup.subtree_control"
	CPUWeightFile = "cpu.weight"
	MemHighFile   = "memory.high"
	MemMaxFile    = "memory.max"
	IOMaxFile     = "io.max"
)

// filePerm is the permission used for every cgroup interface file write.
const filePerm = 0o600

// Controller identifies a cgroup v2 resource controller supported by this
// package. Unrecognized controller names never convert to a Controller;
// they surface as UnknownControllerError instead.
type Controller int

const (
	CPU Controller = iota
	Memory
	IO
)

// Controllers is the ordered set of all controllers this package manages.
// Order matters: it determines the order of the subtree_control join.
var Controllers = []Controller{CPU, Memory, IO}

func (c Controller) String() string {
	switch c {
	case CPU:
		return "cpu"
	case Memory:
		return "memory"
	case IO:
		return "io"
	default:
		return fmt.Sprintf("Controller(%d)", int(c))
	}
}

// ParseController converts a cgroup.controllers token into a Controller. It
// returns *UnknownControllerError for any name other than cpu, memory or io.
func ParseController(name string) (Controller, error) {
	switch name {
	case "cpu":
		return CPU, nil
	case "memory":
		return Memory, nil
	case "io":
		return IO, nil
	default:
		return 0, &UnknownControllerError{Name: name}
	}
}

// UnknownControllerError reports a cgroup.controllers token that is not one
// of cpu, memory, io.
type UnknownControllerError struct {
	Name string
}

func (e *UnknownControllerError) Error() string {
	return fmt.Sprintf("%s: unknown controller name", e.Name)
}

// NotEnabledError reports that some of the requested controllers are not
// present in a cgroup directory's cgroup.controllers file.
type NotEnabledError struct {
	Dir string
}

func (e *NotEnabledError) Error() string {
	return fmt.Sprintf("some controllers at %s are not enabled", e.Dir)
}

// InvalidCPUWeightError reports a cpu weight outside [1, 10000].
type InvalidCPUWeightError struct {
	Weight uint32
}

func (e *InvalidCPUWeightError) Error() string {
	return fmt.Sprintf("%d is invalid, valid range is [1, 10000]", e.Weight)
}

// EnabledControllers reads and parses dir's cgroup.controllers file,
// discarding any token that isn't a Controller this package recognizes.
func EnabledControllers(dir string) ([]Controller, error) {
	data, err := os.ReadFile(filepath.Join(dir, EnabledFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", EnabledFile, err)
	}

	var enabled []Controller
	for _, tok := range strings.Fields(string(data)) {
		if c, err := ParseController(tok); err == nil {
			enabled = append(enabled, c)
		}
	}
	return enabled, nil
}

// isSubset reports whether every controller in want is present in have.
func isSubset(have, want []Controller) bool {
	present := make(map[Controller]bool, len(have))
	for _, c := range have {
		present[c] = true
	}
	for _, c := range want {
		if !present[c] {
			return false
		}
	}
	return true
}

// EnableSubtree enables controllers on dir's subtree. It first verifies
// every requested controller is present in dir's cgroup.controllers,
// returning *NotEnabledError if not, then writes the '+'-joined controller
// list to cgroup.subtree_control.
func EnableSubtree(dir string, controllers []Controller) error {
	enabled, err := EnabledControllers(dir)
	if err != nil {
		return err
	}
	if !isSubset(enabled, controllers) {
		return &NotEnabledError{Dir: dir}
	}
	return EnableSubtreeUnchecked(dir, controllers)
}

// EnableSubtreeUnchecked writes the '+'-joined controller list to
// cgroup.subtree_control without checking cgroup.controllers first.
func EnableSubtreeUnchecked(dir string, controllers []Controller) error {
	contents := joinControllers(controllers, '+')
	return os.WriteFile(filepath.Join(dir, SubtreeFile), []byte(contents), filePerm)
}

// joinControllers renders controllers as a joiner-prefixed, space-separated
// list: joinControllers([cpu, memory, io], '+') == "+cpu +memory +io".
func joinControllers(controllers []Controller, joiner byte) string {
	var b strings.Builder
	for i, c := range controllers {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(joiner)
		b.WriteString(c.String())
	}
	return b.String()
}

// CPUControl carries the cpu.weight value for a job's cgroup.
type CPUControl struct {
	Weight uint32
}

// MemoryControl carries the memory.high (soft) and memory.max (hard) values
// for a job's cgroup.
type MemoryControl struct {
	High, Max uint64
}

// IOLimit carries the io.max values for a single (major, minor) block
// device identified by its device numbers.
type IOLimit struct {
	Major, Minor     uint32
	RBPSMax, WBPSMax uint64
}

// Limits bundles the optional resource limits that may be applied to a
// job's cgroup. A nil field means "do not constrain this resource".
type Limits struct {
	CPU    *CPUControl
	Memory *MemoryControl
	IO     []IOLimit
}

// SetCPUControl writes limits.CPU's weight to dir/cpu.weight, validating it
// falls in [1, 10000]. A nil CPU control is a no-op.
func SetCPUControl(dir string, limits *Limits) error {
	if limits == nil || limits.CPU == nil {
		return nil
	}

	weight := limits.CPU.Weight
	if weight < 1 || weight > 10000 {
		return &InvalidCPUWeightError{Weight: weight}
	}

	return writeUint(dir, CPUWeightFile, uint64(weight))
}

// SetMemControl writes limits.Memory's high and max values to
// dir/memory.high and dir/memory.max. A nil Memory control is a no-op.
func SetMemControl(dir string, limits *Limits) error {
	if limits == nil || limits.Memory == nil {
		return nil
	}

	if err := writeUint(dir, MemHighFile, limits.Memory.High); err != nil {
		return err
	}
	return writeUint(dir, MemMaxFile, limits.Memory.Max)
}

// SetIOControl writes one io.max line per entry in limits.IO. The device
// key is rendered as "<minor>:<major>", matching the original
// implementation's ordering verbatim; see DESIGN.md for why this is
// preserved rather than corrected to the conventional "major:minor".
func SetIOControl(dir string, limits *Limits) error {
	if limits == nil {
		return nil
	}

	for _, io := range limits.IO {
		line := fmt.Sprintf("%d:%d rbps=%d wbps=%d", io.Minor, io.Major, io.RBPSMax, io.WBPSMax)
		if err := os.WriteFile(filepath.Join(dir, IOMaxFile), []byte(line), filePerm); err != nil {
			return fmt.Errorf("write %s: %w", IOMaxFile, err)
		}
	}

	return nil
}

// writeUint renders v into a fixed buffer and writes it to dir/file.
func writeUint(dir, file string, v uint64) error {
	// v is bounded well under 1<<63 for cgroup limits (bytes, weights); the
	// int32 buffer's sign handling is unused here. Values that would
	// overflow an int32 fall back to a direct decimal format.
	var rendered string
	if v <= 1<<31-1 {
		rendered = stackstring.NewInt32(int32(v), 20).String()
	} else {
		rendered = fmt.Sprintf("%d", v)
	}

	if err := os.WriteFile(filepath.Join(dir, file), []byte(rendered), filePerm); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	return nil
}

// JoinProcsPath returns the path to dir's cgroup.procs file, precomputed
// into a fixed-capacity buffer the way the job builder's AddToCgroup stage
// does for the same file.
func JoinProcsPath(dir string) (*stackstring.Buffer, error) {
	return stackstring.NewText(filepath.Join(dir, ProcsFile), 256)
}
