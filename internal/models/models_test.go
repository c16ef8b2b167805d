package models

import "testing"

func TestJobStateTerminal(t *testing.T) {
	cases := []struct {
		state    JobState
		terminal bool
	}{
		{JobStatePending, false},
		{JobStateRunning, false},
		{JobStateSuccess, true},
		{JobStateFailure, true},
	}

	for _, c := range cases {
		if got := c.state.Terminal(); got != c.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", c.state, got, c.terminal)
		}
	}
}

func TestJobStateTransitions(t *testing.T) {
	cases := []struct {
		from    JobState
		to      JobState
		allowed bool
	}{
		{JobStatePending, JobStateRunning, true},
		{JobStatePending, JobStateSuccess, true},
		{JobStatePending, JobStateFailure, true},
		{JobStateRunning, JobStateSuccess, true},
		{JobStateRunning, JobStateFailure, true},
		{JobStateRunning, JobStatePending, false},
		{JobStateSuccess, JobStateRunning, false},
		{JobStateSuccess, JobStateFailure, false},
		{JobStateFailure, JobStateSuccess, false},
		{JobStateFailure, JobStateRunning, false},
		// Repeating the current state is an idempotent no-op
		{JobStateSuccess, JobStateSuccess, true},
		{JobStateFailure, JobStateFailure, true},
		{JobStateRunning, JobStateRunning, true},
	}

	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.allowed {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}
