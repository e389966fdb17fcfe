package ocr

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPauseSignal_WaitReturnsImmediatelyWhenNotPaused(t *testing.T) {
	s := newPauseSignal()
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked despite not being paused")
	}
}

func TestPauseSignal_WaitBlocksUntilResume(t *testing.T) {
	s := newPauseSignal()
	s.Pause()

	var resumed atomic.Bool
	done := make(chan struct{})
	go func() {
		s.Wait()
		resumed.Store(true)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Resume was called")
	case <-time.After(50 * time.Millisecond):
	}

	s.Resume()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Resume")
	}
	assert.True(t, resumed.Load())
}

func TestPauseSignal_PauseIsIdempotent(t *testing.T) {
	s := newPauseSignal()
	s.Pause()
	ch1 := s.ch
	s.Pause()
	assert.Same(t, ch1, s.ch)
}

func TestPauseSignal_OnResumeFiresImmediatelyWhenNotPaused(t *testing.T) {
	s := newPauseSignal()
	fired := false
	s.OnResume(func() { fired = true })
	assert.True(t, fired)
}

func TestPauseSignal_OnResumeFiresOnNextResume(t *testing.T) {
	s := newPauseSignal()
	s.Pause()
	var mu sync.Mutex
	fired := false
	s.OnResume(func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	mu.Lock()
	assert.False(t, fired)
	mu.Unlock()
	s.Resume()
	mu.Lock()
	assert.True(t, fired)
	mu.Unlock()
}

func TestRuntimeState_String(t *testing.T) {
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "PAUSED", StatePaused.String())
}
