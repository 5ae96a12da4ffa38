package mq

// RoutingKeyTaskAssigned is published after a reassignment commits.
const RoutingKeyTaskAssigned = "task.assigned"

type TaskAssignedPayload struct {
	TaskID     string `json:"task_id"`
	Title      string `json:"title"`
	AssignedTo string `json:"assigned_to"`
	AssignedBy string `json:"assigned_by,omitempty"`
	Comment    string `json:"comment,omitempty"`
	DueDate    string `json:"due_date,omitempty"`
}
