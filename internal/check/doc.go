// Package check defines the contract between the traversal engine and the
// analysis modules it runs.
//
// # Data model
//
//   - Check – a module that visits nodes of declared kinds. Optional hook
//     interfaces (BeginTreeHook, LeaveHook, FinishTreeHook, RunFinisher,
//     Configurable, CommentAware, Destroyer) extend the lifecycle.
//   - Capability – the thread-safety contract of a check. The engine decides
//     instancing from it: Stateless and GlobalScoped checks have exactly one
//     instance per run, FileScoped checks get one instance per checker worker.
//   - Violation – an immutable finding: position, message, module identity.
//   - Context – the explicit per-call handle a check receives. It carries the
//     file, its tree and a private violation buffer, so a shared check instance
//     never holds "current file" state of its own.
//   - Properties – configured values. Clone deep-copies them; every instance
//     receives its own copy and never shares backing storage with another.
//
// # Errors
//
// A check that returns an error or panics is a module failure. The engine
// wraps it into *ModuleError and aborts the walk of the current file.
package check
