// Package store persists the task registry as a single JSON file.
// The file maps task IDs to task records and is rewritten after every
// mutation.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/aatumaykin/skybit/internal/logger"
	"github.com/aatumaykin/skybit/internal/tasks"
)

// RegistryFilename is the registry file name inside the data directory.
const RegistryFilename = "task_registry.json"

var (
	// ErrNotFound is returned when no task has the requested ID.
	ErrNotFound = errors.New("task not found")
	// ErrConflict is returned when creating a task whose ID is taken.
	ErrConflict = errors.New("task already exists")
)

// Registry holds every task in memory and mirrors it to disk.
// It is safe for concurrent use. Tasks are copied in and out, so callers
// never share memory with the registry.
type Registry struct {
	mu       sync.RWMutex
	filePath string
	tasks    map[string]tasks.Task
	logger   *logger.Logger
	now      func() time.Time
}

// NewRegistry creates a registry stored under dataDir.
//
// Parameters:
//   - dataDir: Directory holding task_registry.json
//   - log: Logger for persistence errors
//
// Returns:
//   - *Registry: An empty registry; call Load to read the file
func NewRegistry(dataDir string, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		filePath: filepath.Join(dataDir, RegistryFilename),
		tasks:    make(map[string]tasks.Task),
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Path returns the registry file path.
func (r *Registry) Path() string {
	return r.filePath
}

// Load replaces the in-memory tasks with the file contents.
// A missing file is an empty registry. Records that fail to decode are
// logged and skipped.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.filePath)
	if errors.Is(err, os.ErrNotExist) {
		r.mu.Lock()
		r.tasks = make(map[string]tasks.Task)
		r.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read task registry: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse task registry: %w", err)
	}

	loaded := make(map[string]tasks.Task, len(raw))
	for id, msg := range raw {
		var task tasks.Task
		if err := json.Unmarshal(msg, &task); err != nil {
			r.logger.Error("skipping invalid task record", err,
				logger.Field{Key: "task_id", Value: id},
				logger.Field{Key: "file", Value: r.filePath})
			continue
		}
		task.ID = id
		task.NextRun = nil
		loaded[id] = task
	}

	r.mu.Lock()
	r.tasks = loaded
	r.mu.Unlock()

	r.logger.Info("task registry loaded",
		logger.Field{Key: "tasks", Value: len(loaded)},
		logger.Field{Key: "file", Value: r.filePath})
	return nil
}

// List returns every task sorted by ID.
func (r *Registry) List() []tasks.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]tasks.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the task with id.
func (r *Registry) Get(id string) (tasks.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return tasks.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t.Clone(), nil
}

// Create adds task and saves the registry.
func (r *Registry) Create(task tasks.Task) (tasks.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == "" {
		return tasks.Task{}, fmt.Errorf("%w: empty task id", tasks.ErrInvalidTask)
	}
	if _, ok := r.tasks[task.ID]; ok {
		return tasks.Task{}, fmt.Errorf("%w: %s", ErrConflict, task.ID)
	}

	task.NextRun = nil
	r.tasks[task.ID] = task.Clone()
	if err := r.saveLocked(); err != nil {
		delete(r.tasks, task.ID)
		return tasks.Task{}, err
	}
	return task.Clone(), nil
}

// Update applies fn to a copy of the task and stores the result.
// If fn returns an error nothing changes.
func (r *Registry) Update(id string, fn func(*tasks.Task) error) (tasks.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tasks[id]
	if !ok {
		return tasks.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		return tasks.Task{}, err
	}
	next.ID = id
	next.NextRun = nil

	r.tasks[id] = next
	if err := r.saveLocked(); err != nil {
		r.tasks[id] = current
		return tasks.Task{}, err
	}
	return next.Clone(), nil
}

// Delete removes the task with id.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	delete(r.tasks, id)
	if err := r.saveLocked(); err != nil {
		r.tasks[id] = current
		return err
	}
	return nil
}

// RecordRun stores the outcome of a run.
func (r *Registry) RecordRun(id string, rec tasks.RunRecord) (tasks.Task, error) {
	return r.Update(id, func(t *tasks.Task) error {
		t.ApplyRun(rec)
		return nil
	})
}

// AppendStep adds a step to the task's current step log.
func (r *Registry) AppendStep(id string, step tasks.Step) error {
	_, err := r.Update(id, func(t *tasks.Task) error {
		if step.Timestamp.IsZero() {
			step.Timestamp = r.now()
		}
		t.Steps = append(t.Steps, step)
		return nil
	})
	return err
}

// saveLocked writes the registry atomically. r.mu must be held.
func (r *Registry) saveLocked() error {
	data, err := json.MarshalIndent(r.tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode task registry: %w", err)
	}

	dir := filepath.Dir(r.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, RegistryFilename+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp registry: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write task registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write task registry: %w", err)
	}
	if err := os.Rename(tmpName, r.filePath); err != nil {
		_ = os.Remove(tmpName)
		r.logger.Error("failed to save task registry", err, logger.Field{Key: "file", Value: r.filePath})
		return fmt.Errorf("failed to save task registry: %w", err)
	}

	r.logger.Debug("task registry saved", logger.Field{Key: "tasks", Value: len(r.tasks)})
	return nil
}
