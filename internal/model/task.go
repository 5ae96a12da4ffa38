package model

import (
	"encoding/json"
	"fmt"
	"time"

	"taskboard/internal/docstore"
)

// Status is the single workflow state. Documents carry it twice (status and
// progress_status, a legacy of the original schema); every write path in this
// codebase derives both wire fields from this one value.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted:
		return Status(s), true
	}
	return "", false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Comment struct {
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

type ReassignEvent struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Actor     string    `json:"actor,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Task struct {
	// ID is the store-assigned identity. TaskID is the human-facing label
	// generated at creation; it is not unique and never used for lookups.
	ID     string `json:"id"`
	TaskID string `json:"task_id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Status Status `json:"status"`
	// ProgressStatus mirrors Status on every write this code makes. It can
	// differ on documents written by older clients; selectors match either.
	ProgressStatus Status `json:"progress_status"`

	Priority   Priority `json:"priority,omitempty"`
	AssignedTo string   `json:"assigned_to"`
	CreatedBy  string   `json:"created_by,omitempty"`
	// CreatorName is resolved from the employees collection on snapshot
	// delivery; it is not persisted.
	CreatorName string `json:"creator_name,omitempty"`

	DueDate             string `json:"due_date,omitempty"` // YYYY-MM-DD
	Progress            int    `json:"progress"`
	ProgressDescription string `json:"progress_description,omitempty"`
	ProgressLink        string `json:"progress_link,omitempty"`

	Comments        []Comment       `json:"comments"`
	ReassignHistory []ReassignEvent `json:"reassign_history,omitempty"`
	ReassignCount   int             `json:"reassign_count"`

	Tags      string `json:"tags,omitempty"`
	ProjectID string `json:"project_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasStatus reports whether either wire status field matches s. This covers
// documents where the two fields diverged before this codebase owned them.
func (t Task) HasStatus(s Status) bool {
	return t.Status == s || t.ProgressStatus == s
}

// GenerateTaskLabel builds the human-facing task_id label from a timestamp.
func GenerateTaskLabel(now time.Time) string {
	return fmt.Sprintf("TSK-%d", now.UnixMilli())
}

// TaskToDocument encodes a task for storage. Both status fields are written
// from the one internal value; ID and CreatorName stay out of the document.
func TaskToDocument(t Task) (docstore.Document, error) {
	t.ProgressStatus = t.Status
	t.ID = ""
	t.CreatorName = ""

	body, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task: %w", err)
	}
	var doc docstore.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode task: %w", err)
	}
	delete(doc, "id")
	delete(doc, "creator_name")
	return doc, nil
}

// TaskFromDoc decodes a stored document. Reads are tolerant of divergent
// status fields: a missing status falls back to progress_status and vice
// versa, and anything unrecognized decodes as pending.
func TaskFromDoc(d docstore.Doc) (Task, error) {
	body, err := json.Marshal(d.Data)
	if err != nil {
		return Task{}, fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return Task{}, fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}

	t.ID = d.ID
	t.UpdatedAt = d.UpdatedAt

	status, ok := ParseStatus(string(t.Status))
	if !ok {
		status, ok = ParseStatus(string(t.ProgressStatus))
		if !ok {
			status = StatusPending
		}
	}
	t.Status = status
	if _, ok := ParseStatus(string(t.ProgressStatus)); !ok {
		t.ProgressStatus = status
	}
	if t.Comments == nil {
		t.Comments = []Comment{}
	}
	return t, nil
}
