package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskboard/internal/docstore"
	"taskboard/internal/model"
)

const testUser = "u1"

func newTestStore(t *testing.T) (*TaskStore, *fakeStore, *recordingNotifier, *recordingPublisher) {
	t.Helper()
	fake := newFakeStore()
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	ts := NewTaskStore(fake, publisher, notifier, zap.NewNop())
	return ts, fake, notifier, publisher
}

func startTestStore(t *testing.T) (*TaskStore, *fakeStore, *recordingNotifier, *recordingPublisher) {
	t.Helper()
	ts, fake, notifier, publisher := newTestStore(t)
	require.NoError(t, ts.Start(context.Background(), testUser))
	t.Cleanup(ts.Stop)
	return ts, fake, notifier, publisher
}

func taskDoc(id string, updatedAt time.Time, overrides docstore.Document) docstore.Doc {
	data := docstore.Document{
		"title":           "task " + id,
		"status":          "pending",
		"progress_status": "pending",
		"assigned_to":     testUser,
		"progress":        0,
	}
	for k, v := range overrides {
		data[k] = v
	}
	return docstore.Doc{ID: id, Data: data, UpdatedAt: updatedAt}
}

func waitForTasks(t *testing.T, ts *TaskStore, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(ts.Tasks()) == want && !ts.Loading()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStartRequiresUserID(t *testing.T) {
	ts, _, _, _ := newTestStore(t)
	require.Error(t, ts.Start(context.Background(), ""))
}

func TestStartReplacesPriorSubscription(t *testing.T) {
	ts, fake, _, _ := newTestStore(t)
	require.NoError(t, ts.Start(context.Background(), "u1"))
	require.NoError(t, ts.Start(context.Background(), "u2"))
	assert.Equal(t, 1, fake.cancelCount())
	assert.Equal(t, "u2", ts.UserID())

	ts.Stop()
	assert.Equal(t, 2, fake.cancelCount())
}

func TestSnapshotReplaceSemantics(t *testing.T) {
	ts, fake, _, _ := startTestStore(t)

	now := time.Now()
	fake.push(taskDoc("a", now, nil), taskDoc("b", now, nil), taskDoc("c", now, nil))
	waitForTasks(t, ts, 3)

	fake.push(taskDoc("a", now, nil), taskDoc("c", now, nil))
	waitForTasks(t, ts, 2)

	_, found := ts.TaskByID("b")
	assert.False(t, found, "removed task must not survive a snapshot")
	_, found = ts.TaskByID("a")
	assert.True(t, found)
	_, found = ts.TaskByID("c")
	assert.True(t, found)
}

func TestSnapshotErrorKeepsCache(t *testing.T) {
	ts, fake, notifier, _ := startTestStore(t)

	fake.push(taskDoc("a", time.Now(), nil))
	waitForTasks(t, ts, 1)

	fake.pushErr(errors.New("transport failure"))
	require.Eventually(t, func() bool {
		return notifier.errorCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	// stale-but-present beats cleared
	assert.Len(t, ts.Tasks(), 1)
	assert.False(t, ts.Loading())
}

func TestCreatorNameEnrichment(t *testing.T) {
	ts, fake, _, _ := startTestStore(t)

	fake.put(model.EmployeesCollection, docstore.Doc{
		ID:   "u2",
		Data: docstore.Document{"full_name": "Jane Doe"},
	})

	fake.push(
		taskDoc("a", time.Now(), docstore.Document{"created_by": "u2"}),
		taskDoc("b", time.Now(), docstore.Document{"created_by": "ghost"}),
	)
	waitForTasks(t, ts, 2)

	a, _ := ts.TaskByID("a")
	assert.Equal(t, "Jane Doe", a.CreatorName)

	// lookup failures are swallowed, the raw id is the display name
	b, _ := ts.TaskByID("b")
	assert.Equal(t, "ghost", b.CreatorName)
}

func TestUpdateStatusOptimisticBeforeConfirm(t *testing.T) {
	ts, fake, _, _ := startTestStore(t)

	fake.put(model.TasksCollection, taskDoc("a", time.Now(), nil))
	fake.push(taskDoc("a", time.Now(), nil))
	waitForTasks(t, ts, 1)

	fake.updateGate = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- ts.UpdateStatus(context.Background(), "a", model.StatusInProgress, ProgressData{})
	}()

	// visible before the remote write confirms
	require.Eventually(t, func() bool {
		got, _ := ts.TaskByID("a")
		return got.Status == model.StatusInProgress
	}, 2*time.Second, 5*time.Millisecond)
	select {
	case <-done:
		t.Fatal("remote write confirmed before the gate opened")
	default:
	}

	close(fake.updateGate)
	require.NoError(t, <-done)

	// stable after confirmation
	got, _ := ts.TaskByID("a")
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Equal(t, model.StatusInProgress, got.ProgressStatus)

	// and after the authoritative echo
	fake.push(taskDoc("a", time.Now(), docstore.Document{
		"status":          "in_progress",
		"progress_status": "in_progress",
	}))
	require.Eventually(t, func() bool {
		echoed, _ := ts.TaskByID("a")
		return echoed.Status == model.StatusInProgress && echoed.ProgressStatus == model.StatusInProgress
	}, 2*time.Second, 5*time.Millisecond)
}

func TestUpdateStatusWritesBothWireFields(t *testing.T) {
	ts, fake, _, _ := startTestStore(t)

	fake.put(model.TasksCollection, taskDoc("a", time.Now(), nil))
	fake.push(taskDoc("a", time.Now(), nil))
	waitForTasks(t, ts, 1)

	require.NoError(t, ts.UpdateStatus(context.Background(), "a", model.StatusCompleted, ProgressData{
		Description: "done and shipped",
	}))

	stored, err := fake.Get(context.Background(), model.TasksCollection, "a")
	require.NoError(t, err)
	assert.Equal(t, "completed", stored.Data["status"])
	assert.Equal(t, "completed", stored.Data["progress_status"])
	assert.Equal(t, "done and shipped", stored.Data["progress_description"])

	got, _ := ts.TaskByID("a")
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, model.StatusCompleted, got.ProgressStatus)
}

func TestUpdateStatusFailureLeavesCacheUntouched(t *testing.T) {
	ts, fake, notifier, _ := startTestStore(t)

	fake.push(taskDoc("a", time.Now(), docstore.Document{"progress_description": "halfway"}))
	waitForTasks(t, ts, 1)

	before, _ := ts.TaskByID("a")

	fake.updateErr = errors.New("permission denied")
	err := ts.UpdateStatus(context.Background(), "a", model.StatusCompleted, ProgressData{})
	require.Error(t, err)

	after, _ := ts.TaskByID("a")
	assert.Equal(t, before, after, "failed write must leave the cache entry untouched")
	assert.GreaterOrEqual(t, notifier.errorCount(), 1)
}

func TestUpdateStatusRejectsInvalidStatus(t *testing.T) {
	ts, _, _, _ := startTestStore(t)
	require.Error(t, ts.UpdateStatus(context.Background(), "a", model.Status("archived"), ProgressData{}))
}

func TestUpdateProgressClampsPercent(t *testing.T) {
	ts, fake, _, _ := startTestStore(t)

	fake.put(model.TasksCollection, taskDoc("a", time.Now(), nil))
	fake.push(taskDoc("a", time.Now(), nil))
	waitForTasks(t, ts, 1)

	percent := 150
	require.NoError(t, ts.UpdateProgress(context.Background(), "a", ProgressData{
		Status:  model.StatusInProgress,
		Percent: &percent,
	}))

	stored, err := fake.Get(context.Background(), model.TasksCollection, "a")
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Data["progress"])

	got, _ := ts.TaskByID("a")
	assert.Equal(t, 100, got.Progress)
}

func TestAddAssignsDefaults(t *testing.T) {
	ts, fake, _, _ := startTestStore(t)

	fake.push(taskDoc("existing", time.Now(), nil))
	waitForTasks(t, ts, 1)

	created, err := ts.Add(context.Background(), model.Task{Title: "Ship it", AssignedTo: testUser})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, model.StatusPending, created.ProgressStatus)
	assert.Equal(t, 0, created.Progress)
	assert.NotEmpty(t, created.TaskID)
	assert.NotEmpty(t, created.ID)
	assert.NotEqual(t, "existing", created.ID)
	assert.Empty(t, created.Comments)
	assert.Equal(t, 0, created.ReassignCount)

	// appended to the cache alongside the existing task
	assert.Len(t, ts.Tasks(), 2)

	stored, err := fake.Get(context.Background(), model.TasksCollection, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", stored.Data["status"])
	assert.Equal(t, "pending", stored.Data["progress_status"])
}

func TestAddFailureLeavesCacheAlone(t *testing.T) {
	ts, fake, notifier, _ := startTestStore(t)

	fake.push(taskDoc("a", time.Now(), nil))
	waitForTasks(t, ts, 1)

	fake.addErr = errors.New("quota exceeded")
	_, err := ts.Add(context.Background(), model.Task{Title: "nope"})
	require.Error(t, err)

	assert.Len(t, ts.Tasks(), 1)
	assert.GreaterOrEqual(t, notifier.errorCount(), 1)
}

func TestDeleteReflectedLocallyExactlyOnce(t *testing.T) {
	ts, fake, _, _ := startTestStore(t)

	now := time.Now()
	fake.put(model.TasksCollection, taskDoc("t1", now, nil))
	fake.put(model.TasksCollection, taskDoc("t2", now, nil))
	fake.push(taskDoc("t1", now, nil), taskDoc("t2", now, nil))
	waitForTasks(t, ts, 2)

	require.NoError(t, ts.Delete(context.Background(), "t1"))
	assert.Len(t, ts.Tasks(), 1)

	// the second delete hits a not-found remote document and must not
	// remove anything else
	err := ts.Delete(context.Background(), "t1")
	require.ErrorIs(t, err, docstore.ErrNotFound)
	assert.Len(t, ts.Tasks(), 1)

	remaining, found := ts.TaskByID("t2")
	require.True(t, found)
	assert.Equal(t, "t2", remaining.ID)
}

func TestSelectorsPureAndMatchEitherStatusField(t *testing.T) {
	ts, fake, _, _ := startTestStore(t)

	now := time.Now()
	fake.push(
		taskDoc("a", now, docstore.Document{"status": "completed", "progress_status": "completed"}),
		// divergent document written by an older client
		taskDoc("b", now, docstore.Document{"status": "pending", "progress_status": "completed"}),
		taskDoc("c", now, docstore.Document{"status": "in_progress", "progress_status": "in_progress"}),
	)
	waitForTasks(t, ts, 3)

	first := ts.TasksByStatus(model.StatusCompleted)
	second := ts.TasksByStatus(model.StatusCompleted)
	assert.Equal(t, first, second, "selector must be pure")

	ids := []string{}
	for _, task := range first {
		ids = append(ids, task.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	assert.Len(t, ts.TasksForUser(testUser), 3)
	assert.Empty(t, ts.TasksForUser("someone-else"))
}

func TestStaleSnapshotDoesNotClobberOptimisticPatch(t *testing.T) {
	ts, fake, _, _ := startTestStore(t)

	fake.put(model.TasksCollection, taskDoc("a", time.Now(), nil))
	fake.push(taskDoc("a", time.Now(), nil))
	waitForTasks(t, ts, 1)

	require.NoError(t, ts.UpdateStatus(context.Background(), "a", model.StatusCompleted, ProgressData{}))

	// a slow snapshot from before the patch must not win
	fake.push(taskDoc("a", time.Now().Add(-time.Minute), nil))
	time.Sleep(50 * time.Millisecond)

	got, _ := ts.TaskByID("a")
	assert.Equal(t, model.StatusCompleted, got.Status)

	// a snapshot at or after the patch time is authoritative again
	fake.push(taskDoc("a", time.Now(), docstore.Document{
		"status":          "completed",
		"progress_status": "completed",
	}))
	require.Eventually(t, func() bool {
		echoed, _ := ts.TaskByID("a")
		return echoed.Status == model.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)
}

func TestReassignResetsStatusAndRecordsHistory(t *testing.T) {
	ts, fake, _, publisher := startTestStore(t)

	now := time.Now()
	fake.put(model.TasksCollection, taskDoc("a", now, docstore.Document{
		"status":          "completed",
		"progress_status": "completed",
	}))
	fake.push(taskDoc("a", now, docstore.Document{
		"status":          "completed",
		"progress_status": "completed",
	}))
	waitForTasks(t, ts, 1)

	require.NoError(t, ts.Reassign(context.Background(), "a", "u2", "please take over", testUser))

	got, _ := ts.TaskByID("a")
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, model.StatusPending, got.ProgressStatus)
	assert.Equal(t, "u2", got.AssignedTo)
	assert.Equal(t, 1, got.ReassignCount)
	require.Len(t, got.ReassignHistory, 1)
	assert.Equal(t, testUser, got.ReassignHistory[0].From)
	assert.Equal(t, "u2", got.ReassignHistory[0].To)
	assert.Equal(t, "please take over", got.ReassignHistory[0].Comment)

	assert.Equal(t, []string{"task.assigned"}, publisher.published())
}

func TestReassignSucceedsWhenPublishFails(t *testing.T) {
	ts, fake, notifier, publisher := startTestStore(t)
	publisher.err = errors.New("broker unavailable")

	now := time.Now()
	fake.put(model.TasksCollection, taskDoc("a", now, nil))
	fake.push(taskDoc("a", now, nil))
	waitForTasks(t, ts, 1)

	// the assignment itself still succeeds
	require.NoError(t, ts.Reassign(context.Background(), "a", "u2", "", testUser))

	got, _ := ts.TaskByID("a")
	assert.Equal(t, "u2", got.AssignedTo)
	assert.Equal(t, 1, notifier.infoCount())
}

func TestAddComment(t *testing.T) {
	ts, fake, _, _ := startTestStore(t)

	now := time.Now()
	fake.put(model.TasksCollection, taskDoc("a", now, nil))
	fake.push(taskDoc("a", now, nil))
	waitForTasks(t, ts, 1)

	require.NoError(t, ts.AddComment(context.Background(), "a", "looks good", testUser))

	got, _ := ts.TaskByID("a")
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "looks good", got.Comments[0].Text)
	assert.Equal(t, testUser, got.Comments[0].Author)
}

func TestEndToEndScenario(t *testing.T) {
	ts, fake, _, _ := newTestStore(t)
	require.NoError(t, ts.Start(context.Background(), testUser))
	t.Cleanup(ts.Stop)

	assert.True(t, ts.Loading())

	now := time.Now()
	fake.put(model.TasksCollection, taskDoc("a", now, nil))
	fake.push(taskDoc("a", now, nil))
	waitForTasks(t, ts, 1)

	fake.updateGate = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- ts.UpdateStatus(context.Background(), "a", model.StatusInProgress, ProgressData{})
	}()

	require.Eventually(t, func() bool {
		got, _ := ts.TaskByID("a")
		return got.Status == model.StatusInProgress
	}, 2*time.Second, 5*time.Millisecond)

	close(fake.updateGate)
	require.NoError(t, <-done)

	fake.push(taskDoc("a", time.Now(), docstore.Document{
		"status":          "in_progress",
		"progress_status": "in_progress",
	}))
	require.Eventually(t, func() bool {
		got, _ := ts.TaskByID("a")
		return got.Status == model.StatusInProgress && !ts.Loading()
	}, 2*time.Second, 5*time.Millisecond)
}
