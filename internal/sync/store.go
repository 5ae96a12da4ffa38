package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	mqcontracts "taskboard/contracts/mq"
	"taskboard/internal/docstore"
	"taskboard/internal/model"
	"taskboard/internal/notify"
	"taskboard/pkg/metrics"
)

// EventPublisher is the slice of the MQ publisher the store needs.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// ProgressData is the free-form payload for progress updates.
type ProgressData struct {
	Status      model.Status `json:"status"`
	Description string       `json:"description,omitempty"`
	Link        string       `json:"link,omitempty"`
	// Percent, when set, is clamped to [0,100] at this boundary.
	Percent *int `json:"percent,omitempty"`
}

// TaskStore owns the per-user in-memory task cache. The cache is a
// projection of the tasks collection, kept live by one standing
// subscription and patched optimistically by the mutation operations.
type TaskStore struct {
	store     docstore.Store
	publisher EventPublisher
	notifier  notify.Notifier
	logger    *zap.Logger

	mu      stdsync.RWMutex
	tasks   []model.Task
	loading bool
	userID  string
	// patched records the local time of the last optimistic patch per task.
	// A snapshot only overwrites a patched task when its server timestamp is
	// not older than that, so a slow stale snapshot cannot clobber a newer
	// local value.
	patched map[string]time.Time

	subMu     stdsync.Mutex
	subCancel docstore.CancelFunc

	// creator display names resolved so far; misses fall back to the raw id
	names map[string]string
}

// NewTaskStore builds a task store. publisher may be nil when no
// notification pipeline is attached.
func NewTaskStore(store docstore.Store, publisher EventPublisher, notifier notify.Notifier, logger *zap.Logger) *TaskStore {
	return &TaskStore{
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		patched:   map[string]time.Time{},
		names:     map[string]string{},
	}
}

// Start opens the standing subscription for userID. The store owns exactly
// one subscription: starting again (user switch) tears the previous one down
// first, so no caller can leak a listener.
func (s *TaskStore) Start(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("start tracking: user id required")
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.subCancel != nil {
		s.subCancel()
		s.subCancel = nil
	}

	s.mu.Lock()
	s.userID = userID
	s.loading = true
	s.mu.Unlock()

	snaps, cancel, err := s.store.Subscribe(ctx, docstore.Query{
		Collection: model.TasksCollection,
		Filters:    map[string]string{"assigned_to": userID},
	})
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		s.notifier.Error("Failed to load tasks: " + err.Error())
		return err
	}

	s.subCancel = cancel
	go s.consume(ctx, snaps)

	s.logger.Info("Task subscription started", zap.String("user_id", userID))
	return nil
}

// Stop cancels the live subscription, if any.
func (s *TaskStore) Stop() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subCancel != nil {
		s.subCancel()
		s.subCancel = nil
	}
}

func (s *TaskStore) consume(ctx context.Context, snaps <-chan docstore.Snapshot) {
	for snap := range snaps {
		if snap.Err != nil {
			// Stale-but-present beats empty: the cache keeps whatever it
			// last held.
			s.mu.Lock()
			s.loading = false
			s.mu.Unlock()
			s.notifier.Error("Live task updates interrupted: " + snap.Err.Error())
			continue
		}
		s.applySnapshot(ctx, snap)
	}
	s.logger.Debug("Task subscription closed")
}

// applySnapshot replaces the whole cache with the snapshot's result set,
// enriched with creator display names. Tasks absent from the snapshot are
// dropped; tasks with an optimistic patch newer than the snapshot document
// keep their local value.
func (s *TaskStore) applySnapshot(ctx context.Context, snap docstore.Snapshot) {
	incoming := make([]model.Task, 0, len(snap.Docs))
	for _, d := range snap.Docs {
		t, err := model.TaskFromDoc(d)
		if err != nil {
			s.logger.Warn("Skipping undecodable task document",
				zap.String("id", d.ID),
				zap.Error(err),
			)
			continue
		}
		t.CreatorName = s.resolveName(ctx, t.CreatedBy)
		incoming = append(incoming, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[string]model.Task, len(s.tasks))
	for _, t := range s.tasks {
		current[t.ID] = t
	}

	next := make([]model.Task, 0, len(incoming))
	seen := make(map[string]bool, len(incoming))
	for _, t := range incoming {
		if patchedAt, ok := s.patched[t.ID]; ok {
			if t.UpdatedAt.Before(patchedAt) {
				if kept, exists := current[t.ID]; exists {
					kept.CreatorName = t.CreatorName
					t = kept
				}
			} else {
				delete(s.patched, t.ID)
			}
		}
		next = append(next, t)
		seen[t.ID] = true
	}
	for id := range s.patched {
		if !seen[id] {
			delete(s.patched, id)
		}
	}

	s.tasks = next
	s.loading = false
}

// resolveName maps a creator id to a display name via the employees
// collection. Lookup failures are swallowed; the raw id is the fallback.
func (s *TaskStore) resolveName(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	s.mu.RLock()
	name, ok := s.names[userID]
	s.mu.RUnlock()
	if ok {
		return name
	}

	name = userID
	lookupCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if doc, err := s.store.Get(lookupCtx, model.EmployeesCollection, userID); err == nil {
		if full, ok := doc.Data["full_name"].(string); ok && full != "" {
			name = full
		}
	}

	s.mu.Lock()
	s.names[userID] = name
	s.mu.Unlock()
	return name
}

// UpdateStatus patches the cache optimistically, then writes the new status
// (both wire fields plus the server update timestamp) remotely. A rejected
// write rolls the cache entry back to its pre-call value.
func (s *TaskStore) UpdateStatus(ctx context.Context, taskID string, status model.Status, progress ProgressData) error {
	start := time.Now()

	if _, ok := model.ParseStatus(string(status)); !ok {
		return fmt.Errorf("invalid status %q", status)
	}

	patch := docstore.Document{
		"status":          string(status),
		"progress_status": string(status),
	}
	if progress.Description != "" {
		patch["progress_description"] = progress.Description
	}
	if progress.Link != "" {
		patch["progress_link"] = progress.Link
	}

	rollback := s.optimisticPatch(taskID, func(t *model.Task) {
		t.Status = status
		t.ProgressStatus = status
		if progress.Description != "" {
			t.ProgressDescription = progress.Description
		}
		if progress.Link != "" {
			t.ProgressLink = progress.Link
		}
	})

	if err := s.store.Update(ctx, model.TasksCollection, taskID, patch); err != nil {
		rollback()
		metrics.RecordMutation("update_status", "error", time.Since(start))
		s.notifier.Error("Failed to update task status: " + err.Error())
		return err
	}

	metrics.RecordMutation("update_status", "ok", time.Since(start))
	s.notifier.Success("Task status updated")
	return nil
}

// UpdateProgress writes a free-form progress payload. The status field
// still goes through the single internal value, so the two wire fields
// cannot diverge on this path either.
func (s *TaskStore) UpdateProgress(ctx context.Context, taskID string, data ProgressData) error {
	start := time.Now()

	if _, ok := model.ParseStatus(string(data.Status)); !ok {
		return fmt.Errorf("invalid status %q", data.Status)
	}

	patch := docstore.Document{
		"status":               string(data.Status),
		"progress_status":      string(data.Status),
		"progress_description": data.Description,
		"progress_link":        data.Link,
	}
	percent := -1
	if data.Percent != nil {
		percent = clampProgress(*data.Percent)
		patch["progress"] = percent
	}

	rollback := s.optimisticPatch(taskID, func(t *model.Task) {
		t.Status = data.Status
		t.ProgressStatus = data.Status
		t.ProgressDescription = data.Description
		t.ProgressLink = data.Link
		if percent >= 0 {
			t.Progress = percent
		}
	})

	if err := s.store.Update(ctx, model.TasksCollection, taskID, patch); err != nil {
		rollback()
		metrics.RecordMutation("update_progress", "error", time.Since(start))
		s.notifier.Error("Failed to update task progress: " + err.Error())
		return err
	}

	metrics.RecordMutation("update_progress", "ok", time.Since(start))
	s.notifier.Success("Task progress updated")
	return nil
}

// Add creates a task with the standard defaults and appends it to the
// cache once the store has assigned an id.
func (s *TaskStore) Add(ctx context.Context, t model.Task) (model.Task, error) {
	start := time.Now()

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.TaskID = model.GenerateTaskLabel(now)
	t.Status = model.StatusPending
	t.ProgressStatus = model.StatusPending
	t.Progress = 0
	t.Comments = []model.Comment{}
	t.ReassignHistory = nil
	t.ReassignCount = 0

	doc, err := model.TaskToDocument(t)
	if err != nil {
		return model.Task{}, err
	}

	id, err := s.store.Add(ctx, model.TasksCollection, doc)
	if err != nil {
		metrics.RecordMutation("add", "error", time.Since(start))
		s.notifier.Error("Failed to create task: " + err.Error())
		return model.Task{}, err
	}
	t.ID = id

	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	metrics.RecordMutation("add", "ok", time.Since(start))
	s.notifier.Success("Task created")
	s.logger.Info("Task created",
		zap.String("id", id),
		zap.String("task_id", t.TaskID),
		zap.String("assigned_to", t.AssignedTo),
	)
	return t, nil
}

// Delete removes the task remotely, then locally. Sequential, not
// transactional: a second delete of the same id errors remotely and leaves
// the cache alone.
func (s *TaskStore) Delete(ctx context.Context, taskID string) error {
	start := time.Now()

	if err := s.store.Delete(ctx, model.TasksCollection, taskID); err != nil {
		metrics.RecordMutation("delete", "error", time.Since(start))
		s.notifier.Error("Failed to delete task: " + err.Error())
		return err
	}

	s.mu.Lock()
	next := s.tasks[:0:0]
	for _, t := range s.tasks {
		if t.ID != taskID {
			next = append(next, t)
		}
	}
	s.tasks = next
	delete(s.patched, taskID)
	s.mu.Unlock()

	metrics.RecordMutation("delete", "ok", time.Since(start))
	s.notifier.Success("Task deleted")
	return nil
}

// AddComment appends a comment to the task's comment list.
func (s *TaskStore) AddComment(ctx context.Context, taskID, text, author string) error {
	current, err := s.taskOrFetch(ctx, taskID)
	if err != nil {
		s.notifier.Error("Failed to add comment: " + err.Error())
		return err
	}

	comment := model.Comment{Text: text, Author: author, Timestamp: time.Now()}
	comments := append(append([]model.Comment{}, current.Comments...), comment)

	rollback := s.optimisticPatch(taskID, func(t *model.Task) {
		t.Comments = comments
	})

	patch := docstore.Document{"comments": comments}
	if err := s.store.Update(ctx, model.TasksCollection, taskID, patch); err != nil {
		rollback()
		s.notifier.Error("Failed to add comment: " + err.Error())
		return err
	}

	s.notifier.Success("Comment added")
	return nil
}

// Reassign hands the task to a different assignee: status drops back to
// pending from whatever it was, and a history entry is appended. The email
// notification is queued after the write commits; a queue failure is
// non-fatal, the assignment stands.
func (s *TaskStore) Reassign(ctx context.Context, taskID, newAssignee, comment, actor string) error {
	start := time.Now()

	if newAssignee == "" {
		return fmt.Errorf("reassign: assignee required")
	}

	current, err := s.taskOrFetch(ctx, taskID)
	if err != nil {
		s.notifier.Error("Failed to reassign task: " + err.Error())
		return err
	}

	event := model.ReassignEvent{
		From:      current.AssignedTo,
		To:        newAssignee,
		Actor:     actor,
		Comment:   comment,
		Timestamp: time.Now(),
	}
	history := append(append([]model.ReassignEvent{}, current.ReassignHistory...), event)

	patch := docstore.Document{
		"assigned_to":      newAssignee,
		"status":           string(model.StatusPending),
		"progress_status":  string(model.StatusPending),
		"reassign_history": history,
		"reassign_count":   len(history),
	}
	rollback := s.optimisticPatch(taskID, func(t *model.Task) {
		t.AssignedTo = newAssignee
		t.Status = model.StatusPending
		t.ProgressStatus = model.StatusPending
		t.ReassignHistory = history
		t.ReassignCount = len(history)
	})

	if err := s.store.Update(ctx, model.TasksCollection, taskID, patch); err != nil {
		rollback()
		metrics.RecordMutation("reassign", "error", time.Since(start))
		s.notifier.Error("Failed to reassign task: " + err.Error())
		return err
	}

	if s.publisher != nil {
		payload := mqcontracts.TaskAssignedPayload{
			TaskID:     taskID,
			Title:      current.Title,
			AssignedTo: newAssignee,
			AssignedBy: actor,
			Comment:    comment,
			DueDate:    current.DueDate,
		}
		if err := s.publisher.Publish(mqcontracts.RoutingKeyTaskAssigned, payload); err != nil {
			s.logger.Error("Failed to queue assignment notification",
				zap.String("task_id", taskID),
				zap.Error(err),
			)
			s.notifier.Info("Task reassigned, but the email notification could not be queued")
		}
	}

	metrics.RecordMutation("reassign", "ok", time.Since(start))
	s.notifier.Success("Task reassigned")
	return nil
}

// optimisticPatch applies the mutation's expected result to the cached task
// right away and records the patch time for snapshot reconciliation. The
// returned rollback restores the pre-call entry; call it when the remote
// write rejects. A cache miss is a no-op both ways: the follow-on snapshot
// carries the authoritative value anyway.
func (s *TaskStore) optimisticPatch(taskID string, apply func(*model.Task)) (rollback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID != taskID {
			continue
		}
		prev := s.tasks[i]
		prevPatch, hadPatch := s.patched[taskID]

		apply(&s.tasks[i])
		s.tasks[i].UpdatedAt = time.Now()
		s.patched[taskID] = time.Now()

		return func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for j := range s.tasks {
				if s.tasks[j].ID == taskID {
					s.tasks[j] = prev
					break
				}
			}
			if hadPatch {
				s.patched[taskID] = prevPatch
			} else {
				delete(s.patched, taskID)
			}
		}
	}
	return func() {}
}

// taskOrFetch reads the task from the cache, falling back to the store.
func (s *TaskStore) taskOrFetch(ctx context.Context, taskID string) (model.Task, error) {
	if t, ok := s.TaskByID(taskID); ok {
		return t, nil
	}
	doc, err := s.store.Get(ctx, model.TasksCollection, taskID)
	if err != nil {
		return model.Task{}, err
	}
	return model.TaskFromDoc(doc)
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
