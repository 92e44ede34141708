package orchestrator

import (
	"context"

	"github.com/mattjoyce/missionctl/internal/dispatch"
	"github.com/mattjoyce/missionctl/internal/model"
)

//go:generate mockgen -destination=mocks/mock_dispatcher.go -package=mocks github.com/mattjoyce/missionctl/internal/orchestrator TaskDispatcher

// TaskDispatcher defines the dispatch operations the orchestrator drives.
type TaskDispatcher interface {
	DispatchTask(ctx context.Context, task model.Task) ([]dispatch.Record, error)
	RetryDispatch(ctx context.Context, taskID, agentID string) ([]dispatch.Record, error)
	RecordTimeout(taskID, reason string) dispatch.Record
}
