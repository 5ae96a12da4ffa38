package sync

import "taskboard/internal/model"

// Selectors are pure reads over the cache. Linear scans are fine at the
// collection sizes in play (tens to low thousands of tasks per user).

// Tasks returns a copy of the current cache.
func (s *TaskStore) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// TaskByID returns the cached task with the given store id.
func (s *TaskStore) TaskByID(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// TasksByStatus returns cached tasks in the given state. Either wire status
// field counts as a match.
func (s *TaskStore) TasksByStatus(status model.Status) []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Task{}
	for _, t := range s.tasks {
		if t.HasStatus(status) {
			out = append(out, t)
		}
	}
	return out
}

// TasksForUser returns cached tasks assigned to uid.
func (s *TaskStore) TasksForUser(uid string) []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Task{}
	for _, t := range s.tasks {
		if t.AssignedTo == uid {
			out = append(out, t)
		}
	}
	return out
}

// Loading reports whether the first snapshot is still pending.
func (s *TaskStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// UserID returns the user the subscription is scoped to.
func (s *TaskStore) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}
