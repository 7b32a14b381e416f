// Package trace records spans of a check run to find slow files, slow
// checks and hangs.
//
//	arbor check --trace=- --trace-level=file src/
//
// Spans nest as run > file > node. The level picks how deep they go: "run"
// keeps the run span only, "file" adds a span per file and "debug" a span per
// dispatched node. Every span carries the checker thread that opened it and,
// below a file span, that file's name.
//
// "error" prints nothing while running. Events go to a Ring only, and when a
// file fails the checker attaches that file's events to its error:
//
//	ctx = trace.WithTracer(ctx, trace.NewRing(0, trace.LevelError))
//	ctx, span := trace.Start(ctx, trace.ScopeFile, "src/Foo.java")
//	defer span.End("")
//	events := trace.FileEvents(ctx, "src/Foo.java")
package trace
