package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"arbor/internal/trace"
)

// traceFlags are the persistent --trace* flags.
type traceFlags struct {
	output    string
	level     string
	mode      string
	ringSize  int
	heartbeat time.Duration
}

func readTraceFlags(cmd *cobra.Command) (traceFlags, error) {
	pf := cmd.Root().PersistentFlags()
	var (
		tf  traceFlags
		err error
	)
	if tf.output, err = pf.GetString("trace"); err != nil {
		return tf, err
	}
	if tf.level, err = pf.GetString("trace-level"); err != nil {
		return tf, err
	}
	if tf.mode, err = pf.GetString("trace-mode"); err != nil {
		return tf, err
	}
	if tf.ringSize, err = pf.GetInt("trace-ring-size"); err != nil {
		return tf, err
	}
	if tf.heartbeat, err = pf.GetDuration("trace-heartbeat"); err != nil {
		return tf, err
	}
	return tf, nil
}

// setupTracing attaches a tracer to the command context and opens the run
// span tagged with runID. The returned cleanup closes the span and flushes
// the tracer.
func setupTracing(cmd *cobra.Command, runID uuid.UUID) (func(), error) {
	tf, err := readTraceFlags(cmd)
	if err != nil {
		return nil, err
	}
	level, err := trace.ParseLevel(tf.level)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	if level == trace.LevelOff && tf.output == "" {
		cmd.SetContext(trace.WithTracer(contextOf(cmd), trace.Nop))
		return func() {}, nil
	}
	if level == trace.LevelOff {
		// файл указан без уровня
		level = trace.LevelFile
	}
	mode, err := trace.ParseMode(tf.mode)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}
	if tf.output != "" && !cmd.Root().PersistentFlags().Changed("trace-mode") {
		// файл указан явно: пишем в него и держим кольцо для ошибок
		mode = trace.ModeBoth
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: tf.output,
		RingSize:   tf.ringSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx := trace.WithTracer(contextOf(cmd), tracer)
	ctx, span := trace.Start(ctx, trace.ScopeRun, cmd.Name())
	span.Set("run", runID)
	cmd.SetContext(ctx)

	heartbeat := trace.StartHeartbeat(tracer, tf.heartbeat)

	return func() {
		span.End("")
		heartbeat.Stop()
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}, nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
