package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "taskboard/contracts/mq"
	"taskboard/internal/docstore"
	"taskboard/internal/mailer"
	"taskboard/internal/model"
	"taskboard/pkg/util"
)

// TaskAssignedHandler turns task.assigned events into notification emails.
type TaskAssignedHandler struct {
	store  docstore.Store
	mailer *mailer.Mailer
	logger *zap.Logger
}

func NewTaskAssignedHandler(store docstore.Store, mailer *mailer.Mailer, logger *zap.Logger) *TaskAssignedHandler {
	return &TaskAssignedHandler{store: store, mailer: mailer, logger: logger}
}

func (h *TaskAssignedHandler) Handle(ctx context.Context, data json.RawMessage) error {
	var payload mqcontracts.TaskAssignedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.logger.Error("Invalid task.assigned payload", zap.Error(err))
		// malformed payload, drop instead of requeueing forever
		return nil
	}

	h.logger.Info("Processing task.assigned event",
		zap.String("task_id", payload.TaskID),
		zap.String("assigned_to", payload.AssignedTo),
	)

	email, err := h.assigneeEmail(ctx, payload.AssignedTo)
	if err != nil {
		if util.IsConnectionError(err) {
			return err // requeue, the store may come back
		}
		h.logger.Warn("No email for assignee, skipping notification",
			zap.String("assigned_to", payload.AssignedTo),
			zap.Error(err),
		)
		return nil
	}

	subject := fmt.Sprintf("Task assigned to you: %s", payload.Title)
	body := fmt.Sprintf("You have been assigned the task %q.", payload.Title)
	if payload.DueDate != "" {
		body += fmt.Sprintf(" Due date: %s.", payload.DueDate)
	}
	if payload.Comment != "" {
		body += fmt.Sprintf("\n\nNote from %s: %s", payload.AssignedBy, payload.Comment)
	}

	if err := h.mailer.Send(ctx, email, subject, body); err != nil {
		// The assignment itself already committed. Retry only transport
		// failures; anything else is logged and dropped.
		if util.IsConnectionError(err) {
			return err
		}
		return nil
	}
	return nil
}

func (h *TaskAssignedHandler) assigneeEmail(ctx context.Context, userID string) (string, error) {
	doc, err := h.store.Get(ctx, model.EmployeesCollection, userID)
	if err != nil {
		return "", err
	}
	email, _ := doc.Data["email"].(string)
	if email == "" {
		return "", fmt.Errorf("employee %s has no email on record", userID)
	}
	return email, nil
}
