// Package store provides the flat-file record store the engine reads and
// writes. Each table is a single JSON array file under a root directory,
// replaced atomically on write (temp file + rename). The engine performs no
// cross-table transactions: a crash between two table writes leaves them
// inconsistent, and no repair runs on restart.
package store

import (
	"errors"

	"github.com/mattjoyce/missionctl/internal/model"
)

// ErrNotFound is returned when an operation references an unknown task id.
var ErrNotFound = errors.New("task not found")

// Store is the record store contract the engine depends on.
type Store interface {
	Tasks() ([]model.Task, error)
	SaveTasks(tasks []model.Task) error

	// FindTask returns the task with the given id, or ErrNotFound.
	FindTask(id string) (model.Task, error)

	// UpdateTask applies fn to the task with the given id and persists the
	// whole table. Returns ErrNotFound if the id is unknown.
	UpdateTask(id string, fn func(*model.Task)) error

	Activities() ([]model.Activity, error)
	SaveActivities(items []model.Activity) error

	Notifications() ([]model.Notification, error)
	SaveNotifications(items []model.Notification) error
}
