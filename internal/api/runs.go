package api

import (
	"sync"
	"time"
)

// RunStatus is the lifecycle state of an asynchronous run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run tracks one asynchronous ingestion run started over the API.
type Run struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Status    RunStatus  `json:"status"`
	Submitted time.Time  `json:"submitted"`
	Finished  *time.Time `json:"finished,omitempty"`
	Summary   any        `json:"summary,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// runStore tracks runs in memory for the lifetime of the process.
type runStore struct {
	mu   sync.RWMutex
	runs map[string]Run
}

func newRunStore() *runStore {
	return &runStore{runs: map[string]Run{}}
}

func (s *runStore) create(run Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *runStore) get(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	return run, ok
}

func (s *runStore) finish(id string, summary any, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	run.Finished = &now
	run.Summary = summary
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
	} else {
		run.Status = RunSucceeded
	}
	s.runs[id] = run
}
