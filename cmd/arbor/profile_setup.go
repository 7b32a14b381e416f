package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"arbor/internal/prof"
)

// setupProfiling starts the profilers named by the persistent profiling
// flags. The cleanup is safe to call more than once.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	pf := cmd.Root().PersistentFlags()
	var opts prof.Options
	var err error
	if opts.CPU, err = pf.GetString("cpu-profile"); err != nil {
		return nil, err
	}
	if opts.Mem, err = pf.GetString("mem-profile"); err != nil {
		return nil, err
	}
	if opts.Trace, err = pf.GetString("runtime-trace"); err != nil {
		return nil, err
	}
	if opts == (prof.Options{}) {
		return func() {}, nil
	}
	s, err := prof.Start(opts)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := s.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profiling: %v\n", err)
		}
	}, nil
}
