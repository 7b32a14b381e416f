package checker

import (
	"fmt"

	"go.uber.org/zap"

	"arbor/internal/config"
	"arbor/internal/dispatch"
)

// ThreadModeSettings holds the two thread counts of a run. A tree-walker
// count of 1 selects serial dispatch; above 1 selects the worker pool.
type ThreadModeSettings struct {
	checkerThreads    int
	treeWalkerThreads int
}

// SingleThreadMode is the default: one file at a time, serial dispatch.
var SingleThreadMode = ThreadModeSettings{checkerThreads: 1, treeWalkerThreads: 1}

// NewThreadModeSettings validates both counts.
func NewThreadModeSettings(checkerThreads, treeWalkerThreads int) (ThreadModeSettings, error) {
	t, err := config.ValidateThreads(checkerThreads, treeWalkerThreads)
	if err != nil {
		return ThreadModeSettings{}, err
	}
	return ThreadModeSettings{checkerThreads: t.Checker, treeWalkerThreads: t.TreeWalker}, nil
}

func (s ThreadModeSettings) CheckerThreads() int    { return s.checkerThreads }
func (s ThreadModeSettings) TreeWalkerThreads() int { return s.treeWalkerThreads }

// Supports rejects counts above one for an engine level that cannot run
// on more than one goroutine.
func (s ThreadModeSettings) Supports(checkerMulti, treeWalkerMulti bool) error {
	if s.checkerThreads > 1 && !checkerMulti {
		return fmt.Errorf("%w: checker_threads = %d", config.ErrUnsupportedThreads, s.checkerThreads)
	}
	if s.treeWalkerThreads > 1 && !treeWalkerMulti {
		return fmt.Errorf("%w: tree_walker_threads = %d", config.ErrUnsupportedThreads, s.treeWalkerThreads)
	}
	return nil
}

// Executor returns the dispatch strategy for one tree walker.
func (s ThreadModeSettings) Executor(log *zap.Logger) dispatch.Executor {
	return dispatch.New(s.treeWalkerThreads, dispatch.WithLogger(log))
}

func (s ThreadModeSettings) String() string {
	return fmt.Sprintf("checker=%d tree_walker=%d", s.checkerThreads, s.treeWalkerThreads)
}
