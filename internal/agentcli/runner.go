// Package agentcli wraps the local agent command-line tool. It is the
// fallback delivery path when the gateway RPC is unreachable, and the source
// of cron job/run data for the API.
package agentcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/mattjoyce/missionctl/internal/log"
)

const (
	// dispatchWait is how long we wait for the CLI to confirm delivery. An
	// agent's full turn takes far longer; a process still running after the
	// wait counts as a successful dispatch, not a failure.
	dispatchWait = 10 * time.Second

	// turnTimeout is passed to the CLI itself as the agent turn budget.
	turnTimeout = 300 * time.Second

	cmdTimeout = 10 * time.Second
)

// Delivery outcomes reported in dispatch records.
const (
	ResponseDispatched = "cli_dispatched"
	ResponseAsync      = "cli_dispatched_async"
	ResponseBackground = "cli_dispatched_background"
)

// Runner invokes the agent CLI binary.
type Runner struct {
	bin    string
	logger *slog.Logger
}

// NewRunner creates a Runner for the given binary path or name.
func NewRunner(bin string) *Runner {
	return &Runner{
		bin:    bin,
		logger: log.WithComponent("agentcli"),
	}
}

// Bin returns the configured binary.
func (r *Runner) Bin() string {
	return r.bin
}

// Deliver sends a message to an agent through the CLI. It waits up to
// dispatchWait for the process to finish; a process that runs past the wait
// is left running and treated as a successful background dispatch. Only a
// failure to start the process is an error.
func (r *Runner) Deliver(ctx context.Context, agentID, message string) (string, error) {
	cmd := exec.Command(r.bin,
		"--no-color",
		"agent",
		"--agent", agentID,
		"--message", message,
		"--json",
		"--timeout", strconv.Itoa(int(turnTimeout.Seconds())),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("agent CLI %q not installed", r.bin)
		}
		return "", fmt.Errorf("start agent CLI: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	timer := time.NewTimer(dispatchWait)
	defer timer.Stop()

	select {
	case err := <-waitErr:
		if err != nil {
			// Non-zero exit while the agent turn is still in flight; the
			// message was handed off, which is all a dispatch needs.
			r.logger.Info("cli exited non-zero after dispatch", "agent", agentID, "error", err)
			return ResponseAsync, nil
		}
		return ResponseDispatched, nil
	case <-timer.C:
		// Expected: the agent turn outlives the dispatch wait. The process
		// keeps running in the background.
		r.logger.Info("cli dispatch running in background", "agent", agentID, "pid", cmd.Process.Pid)
		go func() { <-waitErr }()
		return ResponseBackground, nil
	case <-ctx.Done():
		go func() { <-waitErr }()
		return "", ctx.Err()
	}
}
