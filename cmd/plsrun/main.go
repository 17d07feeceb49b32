// Command plsrun is a diagnostic entry point over pkg/controller: it starts
// one job for one client and streams its output to the terminal, colored
// by file descriptor. It exists to exercise the core the way an RPC
// handler would, without shipping the RPC layer itself.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/cgroupjobs/pls/pkg/controller"
	"github.com/cgroupjobs/pls/pkg/job"
	"github.com/cgroupjobs/pls/pkg/logstream"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if code, ok := exitCode(err); ok {
			os.Exit(code)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "plsrun <client> <executable> [args...]",
		Short: "Start one job for one client and stream its output",
		Args:  cobra.MinimumNArgs(2),

		// silenced: cobra prints neither usage nor the error text; main only
		// turns a returned error into a nonzero exit status. The job's own
		// exit status is printed as "Status: ..." and does not become
		// plsrun's exit code.
		SilenceUsage:  true,
		SilenceErrors: true,

		RunE: runPlsrun,
	}
	return root
}

func runPlsrun(cmd *cobra.Command, args []string) error {
	client, err := controller.NewClientName(args[0])
	if err != nil {
		return err
	}
	executable := args[1]
	jobArgs := args[2:]

	limited := false
	if _, ok := os.LookupEnv("LIMIT"); ok {
		limited = true
	}

	fmt.Fprintf(cmd.OutOrStdout(), "B(%s), O(%v), N(%s), L(%v)\n", executable, jobArgs, client, limited)

	ctrl, err := controller.New(client, "", "")
	if err != nil {
		return err
	}

	id, err := ctrl.Start(&job.Request{
		Executable: executable,
		Args:       jobArgs,
		Limits:     limitsFor(limited),
	})
	if err != nil {
		return err
	}

	out, err := ctrl.Output(id)
	if err != nil {
		return err
	}

	for msg := range out {
		printColored(cmd.ErrOrStderr(), msg)
	}

	status, err := ctrl.Status(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", status)

	return nil
}

// limitsFor matches spec.md §6's "process environment" paragraph: when
// LIMIT is set, every job gets the same fixed resource ceilings.
func limitsFor(limited bool) *job.Limits {
	if !limited {
		return nil
	}
	return &job.Limits{
		CPU: &job.CPUControl{Weight: 500},
		Memory: &job.MemoryControl{
			High: 512 * 1024 * 1024,
			Max:  1024 * 1024 * 1024,
		},
		IO: []job.IOLimit{
			{Major: 8, Minor: 1, RBPSMax: 1024, WBPSMax: 1024},
		},
	}
}

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func printColored(w io.Writer, msg logstream.Message) {
	color := ansiGreen
	if msg.FD == logstream.FDStderr {
		color = ansiRed
	}
	fmt.Fprintf(w, "%s%q%s\n", color, string(msg.Output), ansiReset)
}

func exitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}
