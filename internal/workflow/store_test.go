package workflow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/catalog"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/graph"
)

func newTestStore(t *testing.T) (*Store, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s, err := Open(filepath.Join(t.TempDir(), "workflows.db"), mock)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mock
}

func testRecord() *Record {
	g := graph.Build([]string{"send_initial_email", "wait_timer"}, nil, catalog.Default())
	return &Record{
		SessionID: "sess-1",
		Name:      "Late delivery notifier",
		Graph:     g,
		Executor:  graph.ToExecutor(g, "", "Late delivery notifier", ""),
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	rec := testRecord()
	require.NoError(t, s.Save(ctx, rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, rec.ID, rec.Executor.ID)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, []string{"send_initial_email", "wait_timer"}, got.Graph.Activities())
	assert.Equal(t, graph.DefaultTaskQueue, got.Executor.Config.TaskQueue)
	assert.Nil(t, got.ReviewedAt)

	_, err = s.Get(ctx, "wf_missing")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestStore_ReviewOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	approved := testRecord()
	require.NoError(t, s.Save(ctx, approved))
	require.NoError(t, s.Approve(ctx, approved.ID, "alice"))
	assert.ErrorIs(t, s.Approve(ctx, approved.ID, "alice"), ErrNotPending)
	assert.ErrorIs(t, s.Reject(ctx, approved.ID, "bob", "late"), ErrNotPending)

	got, err := s.Get(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Equal(t, "alice", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)

	rejected := testRecord()
	require.NoError(t, s.Save(ctx, rejected))
	require.NoError(t, s.Reject(ctx, rejected.ID, "bob", "wrong recipient"))
	got, err = s.Get(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)
	assert.Equal(t, "wrong recipient", got.ReviewReason)

	assert.ErrorIs(t, s.Approve(ctx, "wf_missing", "alice"), ErrWorkflowNotFound)
}

func TestStore_MarkSubmittedRequiresApproval(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	rec := testRecord()
	require.NoError(t, s.Save(ctx, rec))
	assert.ErrorIs(t, s.MarkSubmitted(ctx, rec.ID, "run-1"), ErrNotApproved)

	require.NoError(t, s.Approve(ctx, rec.ID, "alice"))
	require.NoError(t, s.MarkSubmitted(ctx, rec.ID, "run-1"))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, got.Status)
	assert.Equal(t, "run-1", got.RunID)
	require.NotNil(t, got.SubmittedAt)

	assert.ErrorIs(t, s.MarkSubmitted(ctx, rec.ID, "run-2"), ErrNotApproved)
	assert.ErrorIs(t, s.MarkSubmitted(ctx, "wf_missing", "run-2"), ErrWorkflowNotFound)
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s, mock := newTestStore(t)

	first := testRecord()
	require.NoError(t, s.Save(ctx, first))
	mock.Add(time.Minute)
	second := testRecord()
	require.NoError(t, s.Save(ctx, second))
	require.NoError(t, s.Approve(ctx, second.ID, "alice"))

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	pending, err := s.List(ctx, StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)
}
