package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/internal/sync"
)

// DashboardHandler serves the aggregate counts the dashboard and analytics
// views render: per-status, per-priority and overdue totals over the
// caller's live task cache.
type DashboardHandler struct {
	manager *sync.Manager
	logger  *zap.Logger
}

func NewDashboardHandler(manager *sync.Manager, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{manager: manager, logger: logger}
}

func (h *DashboardHandler) Dashboard(c *gin.Context) {
	userID := c.GetString("user_id")
	ts, err := h.manager.ForUser(userID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to start task tracking"})
		return
	}

	tasks := ts.Tasks()

	byStatus := map[string]int{
		string(model.StatusPending):    0,
		string(model.StatusInProgress): 0,
		string(model.StatusCompleted):  0,
	}
	byPriority := map[string]int{}
	overdue := 0
	today := time.Now().Format("2006-01-02")

	for _, t := range tasks {
		byStatus[string(t.Status)]++
		if t.Priority != "" {
			byPriority[string(t.Priority)]++
		}
		if t.DueDate != "" && t.DueDate < today && !t.HasStatus(model.StatusCompleted) {
			overdue++
		}
	}

	completed := byStatus[string(model.StatusCompleted)]
	completionRate := 0.0
	if len(tasks) > 0 {
		completionRate = float64(completed) / float64(len(tasks))
	}

	c.JSON(http.StatusOK, gin.H{
		"total":           len(tasks),
		"by_status":       byStatus,
		"by_priority":     byPriority,
		"overdue":         overdue,
		"completion_rate": completionRate,
		"loading":         ts.Loading(),
	})
}
