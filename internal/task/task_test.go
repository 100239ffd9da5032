package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_Wait(t *testing.T) {
	tk := Go(func() error { return nil })

	require.NoError(t, tk.Wait(context.Background()))
	assert.True(t, tk.Finished())
	assert.NoError(t, tk.Err())
}

func TestGo_Error(t *testing.T) {
	boom := errors.New("boom")
	tk := Go(func() error { return boom })

	assert.ErrorIs(t, tk.Wait(context.Background()), boom)
	assert.ErrorIs(t, tk.Err(), boom)
}

func TestGo_RecoversPanic(t *testing.T) {
	tk := Go(func() error { panic("bad") })

	err := tk.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task panicked: bad")
}

func TestWait_ContextDone(t *testing.T) {
	release := make(chan struct{})
	tk := Go(func() error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, tk.Wait(ctx), context.DeadlineExceeded)
	assert.False(t, tk.Finished())
	assert.NoError(t, tk.Err(), "unfinished task has no error yet")

	close(release)
	require.NoError(t, tk.Wait(context.Background()))
}

func TestThen(t *testing.T) {
	release := make(chan struct{})
	first := Go(func() error {
		<-release
		return errors.New("first")
	})

	var seen error
	next := first.Then(func(err error) error {
		seen = err
		return nil
	})

	assert.False(t, next.Finished())
	close(release)

	require.NoError(t, next.Wait(context.Background()))
	assert.EqualError(t, seen, "first")
}
