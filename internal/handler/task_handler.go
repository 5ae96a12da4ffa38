package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/docstore"
	"taskboard/internal/model"
	"taskboard/internal/sync"
)

type TaskHandler struct {
	manager *sync.Manager
	logger  *zap.Logger
}

func NewTaskHandler(manager *sync.Manager, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{manager: manager, logger: logger}
}

func (h *TaskHandler) storeFor(c *gin.Context) (*sync.TaskStore, bool) {
	userID := c.GetString("user_id")
	ts, err := h.manager.ForUser(userID)
	if err != nil {
		h.logger.Error("Failed to start task tracking",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to start task tracking"})
		return nil, false
	}
	return ts, true
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	ts, ok := h.storeFor(c)
	if !ok {
		return
	}

	var tasks []model.Task
	if raw := c.Query("status"); raw != "" {
		status, ok := model.ParseStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		tasks = ts.TasksByStatus(status)
	} else {
		tasks = ts.Tasks()
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks":   tasks,
		"loading": ts.Loading(),
	})
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	ts, ok := h.storeFor(c)
	if !ok {
		return
	}

	t, found := ts.TaskByID(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": t})
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	AssignedTo  string `json:"assigned_to"`
	DueDate     string `json:"due_date"`
	Tags        string `json:"tags"`
	ProjectID   string `json:"project_id"`
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	// Required-field validation lives here, before any remote call.
	if strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	userID := c.GetString("user_id")
	assignedTo := req.AssignedTo
	if assignedTo == "" {
		assignedTo = userID
	}

	ts, ok := h.storeFor(c)
	if !ok {
		return
	}

	created, err := ts.Add(c.Request.Context(), model.Task{
		Title:       req.Title,
		Description: req.Description,
		Priority:    model.Priority(req.Priority),
		AssignedTo:  assignedTo,
		CreatedBy:   userID,
		DueDate:     req.DueDate,
		Tags:        req.Tags,
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"task": created})
}

type updateStatusRequest struct {
	Status              string `json:"status" binding:"required"`
	ProgressDescription string `json:"progress_description"`
	ProgressLink        string `json:"progress_link"`
}

func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status required"})
		return
	}
	status, ok := model.ParseStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	ts, found := h.storeFor(c)
	if !found {
		return
	}

	err := ts.UpdateStatus(c.Request.Context(), c.Param("id"), status, sync.ProgressData{
		Description: req.ProgressDescription,
		Link:        req.ProgressLink,
	})
	if err != nil {
		h.respondMutationError(c, err, "failed to update status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *TaskHandler) UpdateProgress(c *gin.Context) {
	var req sync.ProgressData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if _, ok := model.ParseStatus(string(req.Status)); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	ts, found := h.storeFor(c)
	if !found {
		return
	}

	if err := ts.UpdateProgress(c.Request.Context(), c.Param("id"), req); err != nil {
		h.respondMutationError(c, err, "failed to update progress")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type commentRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *TaskHandler) AddComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text required"})
		return
	}

	ts, found := h.storeFor(c)
	if !found {
		return
	}

	if err := ts.AddComment(c.Request.Context(), c.Param("id"), req.Text, c.GetString("user_id")); err != nil {
		h.respondMutationError(c, err, "failed to add comment")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type reassignRequest struct {
	AssignedTo string `json:"assigned_to" binding:"required"`
	Comment    string `json:"comment"`
}

func (h *TaskHandler) Reassign(c *gin.Context) {
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "assigned_to required"})
		return
	}

	ts, found := h.storeFor(c)
	if !found {
		return
	}

	if err := ts.Reassign(c.Request.Context(), c.Param("id"), req.AssignedTo, req.Comment, c.GetString("user_id")); err != nil {
		h.respondMutationError(c, err, "failed to reassign task")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	ts, found := h.storeFor(c)
	if !found {
		return
	}

	if err := ts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondMutationError(c, err, "failed to delete task")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *TaskHandler) respondMutationError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, docstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}
