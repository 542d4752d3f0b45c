package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codepad/internal/job"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, time.Hour, 2*time.Minute), mr
}

func TestCreateAndGet(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	created, err := st.Create(ctx, `print("hi")`, job.LangPython, "main.py")
	require.NoError(t, err)
	require.NotEmpty(t, created.JobID)
	require.NotEmpty(t, created.Token)
	assert.True(t, created.TokenExpiresAt.After(time.Now()))

	j, err := st.Get(ctx, created.JobID)
	require.NoError(t, err)
	assert.Equal(t, created.JobID, j.ID)
	assert.Equal(t, `print("hi")`, j.Code)
	assert.Equal(t, job.LangPython, j.Language)
	assert.Equal(t, "main.py", j.Filename)
	assert.Equal(t, job.StatusQueued, j.Status)
	assert.Nil(t, j.Result)
	assert.False(t, j.CreatedAt.IsZero())

	// Job records carry a TTL.
	ttl := mr.TTL("job:" + created.JobID)
	assert.Greater(t, ttl, time.Minute)
}

func TestCreateRejectsBadFilename(t *testing.T) {
	st, _ := newTestStore(t)

	_, err := st.Create(context.Background(), "x", job.LangPython, "../escape.py")
	assert.Error(t, err)
}

func TestGetNotFound(t *testing.T) {
	st, _ := newTestStore(t)

	_, err := st.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusTransitions(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	created, err := st.Create(ctx, "x", job.LangPython, "main.py")
	require.NoError(t, err)
	id := created.JobID

	// queued -> completed is illegal.
	err = st.MarkCompleted(ctx, id, job.Result{Success: true})
	assert.ErrorIs(t, err, ErrIllegalTransition)

	require.NoError(t, st.MarkProcessing(ctx, id))

	// processing -> processing is illegal.
	assert.ErrorIs(t, st.MarkProcessing(ctx, id), ErrIllegalTransition)

	res := job.Result{Success: true, ExitCode: 0, ExecutionTime: 0.42, Stdout: "hi\n"}
	require.NoError(t, st.MarkCompleted(ctx, id, res))

	j, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, j.Status)
	require.NotNil(t, j.Result)
	assert.Equal(t, 0, j.Result.ExitCode)
	assert.Equal(t, "hi\n", j.Result.Stdout)
	assert.NotNil(t, j.CompletedAt)

	// Terminal states are final.
	assert.ErrorIs(t, st.MarkFailed(ctx, id, "late", nil), ErrIllegalTransition)
	assert.ErrorIs(t, st.MarkProcessing(ctx, id), ErrIllegalTransition)
}

func TestMarkFailedFromQueuedAndProcessing(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	// From queued.
	a, err := st.Create(ctx, "x", job.LangC, "main.c")
	require.NoError(t, err)
	require.NoError(t, st.MarkFailed(ctx, a.JobID, "validation rejected", nil))

	j, err := st.Get(ctx, a.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Equal(t, "validation rejected", j.Error)

	// From processing, with a partial result.
	b, err := st.Create(ctx, "x", job.LangC, "main.c")
	require.NoError(t, err)
	require.NoError(t, st.MarkProcessing(ctx, b.JobID))
	partial := &job.Result{Success: false, ExitCode: -1, Stderr: "spawn failed"}
	require.NoError(t, st.MarkFailed(ctx, b.JobID, "spawn failed", partial))

	j, err = st.Get(ctx, b.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, j.Status)
	require.NotNil(t, j.Result)
	assert.Equal(t, -1, j.Result.ExitCode)
}

func TestTransitionOnMissingJob(t *testing.T) {
	st, _ := newTestStore(t)

	err := st.MarkProcessing(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsumeTokenSingleShot(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	created, err := st.Create(ctx, "x", job.LangRust, "main.rs")
	require.NoError(t, err)

	jobID, err := st.ConsumeToken(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.JobID, jobID)

	// Second consumption of the same token fails.
	_, err = st.ConsumeToken(ctx, created.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestConsumeTokenInvalid(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	_, err := st.ConsumeToken(ctx, "deadbeef")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = st.ConsumeToken(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpiry(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	created, err := st.Create(ctx, "x", job.LangPython, "main.py")
	require.NoError(t, err)

	// Past the token TTL the token is gone but the job remains.
	mr.FastForward(3 * time.Minute)

	_, err = st.ConsumeToken(ctx, created.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = st.Get(ctx, created.JobID)
	assert.NoError(t, err)
}

func TestJobExpiry(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	created, err := st.Create(ctx, "x", job.LangPython, "main.py")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = st.Get(ctx, created.JobID)
	assert.ErrorIs(t, err, ErrNotFound)
}
