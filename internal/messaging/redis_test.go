package messaging

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logbot-service/internal/logger"
	"logbot-service/internal/types"
)

func newTestClient(t *testing.T, callbacks Callbacks) *RedisClient {
	t.Helper()
	l := logger.NewLogger(log.New(io.Discard, "", 0), logger.LogLevelDebug)
	// Nothing listens on port 1
	r := NewRedisClient("127.0.0.1", 1, l, callbacks)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSnapshotFieldsWhileRunning(t *testing.T) {
	set, del := snapshotFields(types.Snapshot{
		State:  types.StateFollowing,
		Active: types.ActionFollow,
		RunID:  "run-1",
		LastCompleted: &types.LastCompleted{
			Kind:      types.ActionFindEdge,
			Succeeded: true,
		},
	})

	assert.Equal(t, map[string]interface{}{
		FieldAction:        "follow",
		FieldRunID:         "run-1",
		FieldLastCompleted: "edge",
		FieldLastSuccess:   "true",
	}, set)
	assert.Empty(t, del)
}

func TestSnapshotFieldsWhileIdle(t *testing.T) {
	set, del := snapshotFields(types.Snapshot{State: types.StateIdle})

	assert.Empty(t, set)
	assert.ElementsMatch(t, []string{FieldAction, FieldRunID, FieldLastCompleted, FieldLastSuccess}, del)
}

func TestConnectFailsWithoutServer(t *testing.T) {
	r := newTestClient(t, Callbacks{})
	assert.Error(t, r.Connect())
}

func TestStartListeningRequiresCallback(t *testing.T) {
	r := newTestClient(t, Callbacks{})
	assert.Error(t, r.StartListening())
}

func TestActionCommandErrorSkipsResponse(t *testing.T) {
	boom := errors.New("bad action")
	var got string
	r := newTestClient(t, Callbacks{
		ActionCallback: func(name string) (string, error) {
			got = name
			return "", boom
		},
	})

	err := r.handleActionCommand("calibrate")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "calibrate", got)
}

func TestCloseStopsListener(t *testing.T) {
	l := logger.NewLogger(log.New(io.Discard, "", 0), logger.LogLevelError)
	r := NewRedisClient("127.0.0.1", 1, l, Callbacks{
		ActionCallback: func(string) (string, error) { return "", nil },
	})
	require.NoError(t, r.StartListening())

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not return")
	}
}
