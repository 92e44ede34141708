package agentcli

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strconv"
	"strings"
)

// CronJobsResult is the parsed output of `cron list`. Failures are reported
// in Error, never as a Go error; callers forward the struct as-is.
type CronJobsResult struct {
	OK     bool             `json:"ok"`
	Jobs   []map[string]any `json:"jobs"`
	Error  string           `json:"error,omitempty"`
	Stdout string           `json:"stdout,omitempty"`
}

// CronRunsResult is the parsed output of `cron runs`.
type CronRunsResult struct {
	OK      bool             `json:"ok"`
	Entries []map[string]any `json:"entries"`
	Error   string           `json:"error,omitempty"`
}

// CronJobs runs `<bin> --no-color cron list --json`.
func (r *Runner) CronJobs(ctx context.Context) CronJobsResult {
	cctx, cancel := context.WithTimeout(ctx, cmdTimeout)
	defer cancel()

	out, err := exec.CommandContext(cctx, r.bin, "--no-color", "cron", "list", "--json").Output()
	if err != nil {
		return CronJobsResult{Jobs: []map[string]any{}, Error: cronError(cctx, err)}
	}

	payload, ok := ExtractJSON(string(out))
	if !ok {
		return CronJobsResult{
			Jobs:   []map[string]any{},
			Error:  "invalid json from agent CLI",
			Stdout: truncate(string(out), 2000),
		}
	}

	var obj struct {
		OK   *bool            `json:"ok"`
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.Unmarshal(payload, &obj); err == nil && obj.Jobs != nil {
		ok := true
		if obj.OK != nil {
			ok = *obj.OK
		}
		return CronJobsResult{OK: ok, Jobs: obj.Jobs}
	}

	var list []map[string]any
	if err := json.Unmarshal(payload, &list); err == nil {
		return CronJobsResult{OK: true, Jobs: list}
	}
	return CronJobsResult{OK: true, Jobs: []map[string]any{}}
}

// CronRuns returns cron run history for an agent's heartbeat job.
func (r *Runner) CronRuns(ctx context.Context, agentID string, limit int) CronRunsResult {
	cctx, cancel := context.WithTimeout(ctx, cmdTimeout)
	defer cancel()

	jobID := agentID + "-heartbeat"
	out, err := exec.CommandContext(cctx, r.bin,
		"--no-color", "cron", "runs", "--id", jobID, "--limit", strconv.Itoa(limit),
	).Output()
	if err != nil {
		return CronRunsResult{Entries: []map[string]any{}, Error: cronError(cctx, err)}
	}

	payload, ok := ExtractJSON(string(out))
	if !ok {
		return CronRunsResult{Entries: []map[string]any{}, Error: "invalid json"}
	}

	var res CronRunsResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return CronRunsResult{Entries: []map[string]any{}, Error: "invalid json"}
	}
	res.OK = true
	if res.Entries == nil {
		res.Entries = []map[string]any{}
	}
	return res
}

func cronError(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "agent CLI timed out"
	}
	if errors.Is(err, exec.ErrNotFound) {
		return "agent CLI not installed"
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return truncate(strings.TrimSpace(string(exitErr.Stderr)), 500)
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
