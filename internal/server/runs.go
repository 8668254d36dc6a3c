package server

import (
	"sync"

	"jobapplicator/internal/common"
)

const defaultKeepRuns = 50

// RunStore keeps the most recent run results in memory for CSV export.
type RunStore struct {
	mu    sync.Mutex
	runs  map[string]*common.RunResult
	order []string
	limit int
}

// NewRunStore creates a store holding at most limit runs.
func NewRunStore(limit int) *RunStore {
	if limit <= 0 {
		limit = defaultKeepRuns
	}
	return &RunStore{runs: make(map[string]*common.RunResult), limit: limit}
}

// Put stores result under its run id, evicting the oldest run when full.
func (rs *RunStore) Put(result *common.RunResult) {
	if result == nil || result.Summary.RunID == "" {
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	id := result.Summary.RunID
	if _, exists := rs.runs[id]; !exists {
		rs.order = append(rs.order, id)
	}
	rs.runs[id] = result

	for len(rs.order) > rs.limit {
		delete(rs.runs, rs.order[0])
		rs.order = rs.order[1:]
	}
}

// Get returns the stored run with the given id.
func (rs *RunStore) Get(id string) (*common.RunResult, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.runs[id]
	return r, ok
}

// Len reports how many runs are held.
func (rs *RunStore) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.runs)
}
