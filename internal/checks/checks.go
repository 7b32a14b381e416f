// Package checks holds the built-in checks, one for each capability.
package checks

import "arbor/internal/check"

// typeKinds are the Java type declarations.
var typeKinds = []string{
	"class_declaration",
	"interface_declaration",
	"enum_declaration",
	"record_declaration",
	"annotation_type_declaration",
}

// Register adds every built-in check to r.
func Register(r *check.Registry) {
	r.MustRegister("IllegalKindCheck", func() check.Check { return NewIllegalKind() })
	r.MustRegister("TodoCommentCheck", func() check.Check { return NewTodoComment() })
	r.MustRegister("OuterTypeNumberCheck", func() check.Check { return NewOuterTypeNumber() })
	r.MustRegister("UniqueTypeNameCheck", func() check.Check { return NewUniqueTypeName() })
}

// Default returns a registry with the built-in checks.
func Default() *check.Registry {
	r := check.NewRegistry()
	Register(r)
	return r
}
