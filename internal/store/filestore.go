package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattjoyce/missionctl/internal/model"
)

// Table file names under the store root.
const (
	tasksFile         = "tasks.json"
	activitiesFile    = "activities.json"
	notificationsFile = "notifications.json"
)

// FileStore is a Store backed by JSON array files. One mutex per table
// serializes read-modify-write cycles; the table set is fixed, so there is
// no growing lock registry.
type FileStore struct {
	root string

	tasksMu    sync.Mutex
	activityMu sync.Mutex
	notifyMu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file store rooted at dir. The directory is created
// on first write, not here.
func NewFileStore(dir string) (*FileStore, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, fmt.Errorf("store root directory is empty")
	}
	return &FileStore{root: filepath.Clean(trimmed)}, nil
}

// Root returns the store's root directory.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) Tasks() ([]model.Task, error) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	var out []model.Task
	if err := s.readTable(tasksFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileStore) SaveTasks(tasks []model.Task) error {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	return s.writeTable(tasksFile, tasks)
}

func (s *FileStore) FindTask(id string) (model.Task, error) {
	tasks, err := s.Tasks()
	if err != nil {
		return model.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *FileStore) UpdateTask(id string, fn func(*model.Task)) error {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()

	var tasks []model.Task
	if err := s.readTable(tasksFile, &tasks); err != nil {
		return err
	}
	for i := range tasks {
		if tasks[i].ID == id {
			fn(&tasks[i])
			tasks[i].UpdatedAtMs = model.NowMs()
			return s.writeTable(tasksFile, tasks)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *FileStore) Activities() ([]model.Activity, error) {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	var out []model.Activity
	if err := s.readTable(activitiesFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileStore) SaveActivities(items []model.Activity) error {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return s.writeTable(activitiesFile, items)
}

func (s *FileStore) Notifications() ([]model.Notification, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	var out []model.Notification
	if err := s.readTable(notificationsFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileStore) SaveNotifications(items []model.Notification) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	return s.writeTable(notificationsFile, items)
}

// readTable unmarshals a table file into out. A missing file reads as an
// empty table.
func (s *FileStore) readTable(name string, out any) error {
	data, err := os.ReadFile(filepath.Join(s.root, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read table %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse table %s: %w", name, err)
	}
	return nil
}

// writeTable marshals rows and replaces the table file atomically.
func (s *FileStore) writeTable(name string, rows any) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create store root: %w", err)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal table %s: %w", name, err)
	}
	data = append(data, '\n')

	path := filepath.Join(s.root, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write table %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace table %s: %w", name, err)
	}
	return nil
}
