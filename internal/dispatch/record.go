package dispatch

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mattjoyce/missionctl/internal/model"
)

// Status of a single delivery attempt.
//
// The last dispatch engine carried delivered/claimed/executing/completed
// states no code path ever produced; this enum holds only the reachable
// ones. StatusTimeout is synthetic, emitted by the orchestrator's staleness
// scan rather than the delivery path.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDispatching Status = "dispatching"
	StatusDispatched  Status = "dispatched"
	StatusFailed      Status = "failed"
	StatusTimeout     Status = "timeout"
)

const (
	messagePreview  = 500
	responsePreview = 1000

	// logCapacity bounds the in-memory dispatch log. Records beyond this
	// survive only in each task's own dispatch history slice.
	logCapacity = 500
)

// Record tracks one delivery attempt for one (task, agent) pair. Records
// reference tasks by id only; the task may be deleted out from under them.
type Record struct {
	ID             string `json:"id"`
	TaskID         string `json:"taskId"`
	AgentID        string `json:"agentId"`
	Status         Status `json:"status"`
	Message        string `json:"message"`
	Response       string `json:"response,omitempty"`
	Error          string `json:"error,omitempty"`
	Attempt        int    `json:"attempt"`
	CreatedAtMs    int64  `json:"createdAtMs"`
	DispatchedAtMs int64  `json:"dispatchedAtMs,omitempty"`
	CompletedAtMs  int64  `json:"completedAtMs,omitempty"`
}

func newRecord(taskID, agentID, message string, attempt int) Record {
	return Record{
		ID:          newID("dsp"),
		TaskID:      taskID,
		AgentID:     agentID,
		Status:      StatusPending,
		Message:     clip(message, messagePreview),
		Attempt:     attempt,
		CreatedAtMs: model.NowMs(),
	}
}

// attemptEntry projects the record into a task's dispatch history slice.
func (r Record) attemptEntry() model.DispatchAttempt {
	at := r.DispatchedAtMs
	if at == 0 {
		at = r.CreatedAtMs
	}
	return model.DispatchAttempt{
		ID:      r.ID,
		AgentID: r.AgentID,
		Status:  string(r.Status),
		Attempt: r.Attempt,
		AtMs:    at,
		Error:   r.Error,
	}
}

func newID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + hex[:12]
}

// clip bounds s to at most n runes so truncation never splits a multibyte
// character.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ringLog is a bounded in-memory record log, oldest evicted first.
type ringLog struct {
	mu    sync.Mutex
	buf   []Record
	start int
	size  int
}

func newRingLog(capacity int) *ringLog {
	if capacity <= 0 {
		capacity = logCapacity
	}
	return &ringLog{buf: make([]Record, capacity)}
}

func (l *ringLog) append(r Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	capacity := len(l.buf)
	if l.size < capacity {
		l.buf[(l.start+l.size)%capacity] = r
		l.size++
		return
	}
	l.buf[l.start] = r
	l.start = (l.start + 1) % capacity
}

// recent returns up to limit records, most recent first.
func (l *ringLog) recent(limit int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > l.size {
		limit = l.size
	}
	out := make([]Record, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, l.buf[(l.start+l.size-1-i)%len(l.buf)])
	}
	return out
}

// forTask returns records for one task in insertion order.
func (l *ringLog) forTask(taskID string) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Record
	for i := 0; i < l.size; i++ {
		r := l.buf[(l.start+i)%len(l.buf)]
		if r.TaskID == taskID {
			out = append(out, r)
		}
	}
	return out
}
