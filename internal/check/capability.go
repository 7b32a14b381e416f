package check

// Capability classifies how a check may be shared between files and goroutines.
type Capability uint8

const (
	capabilityInvalid Capability = iota
	// Stateless checks have no mutable state after configuration;
	// one instance is shared by every file and goroutine.
	Stateless
	// FileScoped checks keep per-file state. An instance only ever
	// processes one file at a time, on one goroutine.
	FileScoped
	// GlobalScoped checks accumulate state over the whole run. Exactly one
	// instance exists; it must synchronize its own mutations.
	GlobalScoped
)

func (c Capability) String() string {
	switch c {
	case Stateless:
		return "stateless"
	case FileScoped:
		return "file-scoped"
	case GlobalScoped:
		return "global-scoped"
	}
	return "invalid"
}

func (c Capability) IsValid() bool {
	return c >= Stateless && c <= GlobalScoped
}

// Shared reports whether one instance serves the whole run.
func (c Capability) Shared() bool {
	return c == Stateless || c == GlobalScoped
}
