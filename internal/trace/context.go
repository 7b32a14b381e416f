package trace

import "context"

type tracerKey struct{}

type spanKey struct{}

// spanRef is what a context remembers about the innermost open span.
type spanRef struct {
	id     uint64
	worker int
	file   string
}

// WithTracer attaches t to ctx. A nil t disables tracing.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey{}, t)
}

// FromContext returns the tracer attached to ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(tracerKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// WithWorker labels every span started under ctx with a checker thread.
func WithWorker(ctx context.Context, worker int) context.Context {
	ref := current(ctx)
	ref.worker = worker
	return context.WithValue(ctx, spanKey{}, ref)
}

func current(ctx context.Context) spanRef {
	if ctx == nil {
		return spanRef{}
	}
	ref, _ := ctx.Value(spanKey{}).(spanRef)
	return ref
}
