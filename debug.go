// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ocr

import (
	"sync"
)

// RuntimeState reports whether a policy domain's workers are actively
// stealing work or cooperatively parked (spec §12 debug extension).
type RuntimeState uint8

const (
	StateRunning RuntimeState = iota
	StatePaused
)

func (s RuntimeState) String() string {
	if s == StatePaused {
		return "PAUSED"
	}
	return "RUNNING"
}

// pauseSignal is the broadcast primitive behind ocrPause/ocrResume: workers
// block on Wait when paused, and every resume handler registered via
// OnResume fires once, in registration order, the next time the domain
// resumes. Grounded on the teacher's AbortSignal (abort.go), generalized
// from a one-shot abort to a toggling pause/resume gate.
type pauseSignal struct {
	mu      sync.Mutex
	paused  bool
	ch      chan struct{} // open while paused, closed by Resume; nil while running
	waiters []func()
}

func newPauseSignal() *pauseSignal {
	return &pauseSignal{}
}

// Paused reports the current state.
func (s *pauseSignal) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Wait blocks the caller while the signal is paused. It returns immediately
// if not paused.
func (s *pauseSignal) Wait() {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

// Pause transitions to paused; a no-op if already paused (spec §12:
// "ocrPause is idempotent while already paused").
func (s *pauseSignal) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.paused = true
	s.ch = make(chan struct{})
}

// Resume transitions to running, releasing every blocked Wait call and
// invoking every OnResume handler registered since the last resume.
func (s *pauseSignal) Resume() {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	ch := s.ch
	s.ch = nil
	handlers := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	close(ch)
	for _, h := range handlers {
		h()
	}
}

// OnResume registers a callback fired on the next Resume call. If the
// signal is not currently paused, the callback fires immediately.
func (s *pauseSignal) OnResume(handler func()) {
	if handler == nil {
		return
	}
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		handler()
		return
	}
	s.waiters = append(s.waiters, handler)
	s.mu.Unlock()
}

// Pause implements ocrPause: halts scheduling of new work across the
// domain's workers without tearing down any runlevel (spec §12). In-flight
// task bodies run to completion; only the getWork loop parks.
func (pd *PolicyDomain) Pause() {
	pd.pause.Pause()
}

// Resume implements ocrResume: releases every worker parked by Pause.
func (pd *PolicyDomain) Resume() {
	pd.pause.Resume()
}

// Query implements ocrQuery: reports the domain's current runlevel,
// whether it is paused, and how many tasks its registry believes are live
// (spec §12).
func (pd *PolicyDomain) Query() (level Runlevel, state RuntimeState, activeTasks int) {
	state = StateRunning
	if pd.pause.Paused() {
		state = StatePaused
	}
	if pd.Tasks != nil {
		activeTasks = pd.Tasks.ActiveCount()
	}
	return pd.Runlevel(), state, activeTasks
}
