package check

import "arbor/internal/ast"

// Kinds declares which node kinds a check is interested in.
// Names refer to ast.KindTable entries of the parser in use.
type Kinds struct {
	// Default kinds are used when the configuration does not list tokens.
	Default []string
	// Acceptable bounds the configured tokens; nil means "same as Default".
	Acceptable []string
	// Required kinds are always registered, whatever the configuration says.
	Required []string
}

// Check is a pluggable analysis module.
type Check interface {
	// Name returns the display name, optionally package-qualified
	// ("IllegalKindCheck", "com.x.UnusedImportsCheck").
	Name() string
	Capability() Capability
	Kinds() Kinds
	Visit(ctx *Context, node ast.NodeID) error
}

// BeginTreeHook is called before the first node of every file.
type BeginTreeHook interface {
	BeginTree(ctx *Context, root ast.NodeID) error
}

// LeaveHook is called after the subtree of a visited node has been processed.
type LeaveHook interface {
	Leave(ctx *Context, node ast.NodeID) error
}

// FinishTreeHook is called once per file after the whole tree was visited.
type FinishTreeHook interface {
	FinishTree(ctx *Context, root ast.NodeID) error
}

// RunFinisher is implemented by GlobalScoped checks that report after the
// last file of the run.
type RunFinisher interface {
	FinishRun(ctx *RunContext) error
}

// Configurable checks receive their properties before the first file.
// The map is a private deep copy owned by the instance.
type Configurable interface {
	Configure(props Properties) error
}

// CommentAware checks see comment nodes; other checks never do.
type CommentAware interface {
	CommentNodesRequired() bool
}

// Destroyer releases resources when the engine shuts down.
type Destroyer interface {
	Destroy()
}

// WantsComments reports whether c must be walked with comment nodes.
func WantsComments(c Check) bool {
	ca, ok := c.(CommentAware)
	return ok && ca.CommentNodesRequired()
}
