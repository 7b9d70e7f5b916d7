package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go-careerwatch/internal/logger"
	"go-careerwatch/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(context.Context) (*pipeline.Summary, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &pipeline.Summary{RunID: "r"}, nil
}

func TestTick(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ok", nil},
		{"in progress", pipeline.ErrRunInProgress},
		{"failed", errors.New("history corrupt")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &countingRunner{err: tt.err}
			New(r, "@every 1h", logger.Discard()).Tick(context.Background())
			assert.EqualValues(t, 1, r.calls.Load())
		})
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := New(&countingRunner{}, "every now and then", logger.Discard())
	assert.ErrorContains(t, s.Start(context.Background()), "invalid schedule")
}

func TestStart_Fires(t *testing.T) {
	r := &countingRunner{}
	s := New(r, "@every 1s", logger.Discard())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}
