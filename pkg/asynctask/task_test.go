package asynctask

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskReportsError(t *testing.T) {
	boom := errors.New("boom")
	hooked := make(chan error, 1)

	task := Go(context.Background(), "write", func(context.Context) error { return boom }, func(name string, err error, _ time.Duration) {
		if name == "write" {
			hooked <- err
		}
	})

	require.ErrorIs(t, task.Wait(context.Background()), boom)
	require.ErrorIs(t, task.Err(), boom)

	select {
	case err := <-hooked:
		require.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("hook not called")
	}
}

func TestTaskSurvivesParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})

	task := Go(parent, "write", func(ctx context.Context) error {
		<-release
		return ctx.Err()
	})
	cancel()
	close(release)

	require.NoError(t, task.Wait(context.Background()))
}

func TestTaskWaitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	task := Go(context.Background(), "slow", func(context.Context) error {
		<-block
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, task.Wait(ctx), context.DeadlineExceeded)
	require.NoError(t, task.Err())

	select {
	case <-task.Done():
		t.Fatal("task finished early")
	default:
	}
}

func TestTaskRecoversPanic(t *testing.T) {
	task := Go(context.Background(), "panics", func(context.Context) error { panic("bad") })
	err := task.Wait(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad")
}

func TestCompleted(t *testing.T) {
	task := Completed("noop", nil)
	<-task.Done()
	require.NoError(t, task.Wait(context.Background()))
	require.Equal(t, "noop", task.Name())
}
