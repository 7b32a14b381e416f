package check

import "strings"

// Registration binds a check instance to its configured identity.
// It is the record the engine inspects at dispatch time.
type Registration struct {
	Check      Check
	Capability Capability
	Name       string
	ID         string
	Severity   Severity
	Tokens     []string // настроенные виды; nil - значения по умолчанию
	Order      int      // позиция в конфигурации
	Comments   bool
}

// NewRegistration builds a registration from a configured Spec.
func NewRegistration(c Check, spec Spec, order int) *Registration {
	return &Registration{
		Check:      c,
		Capability: c.Capability(),
		Name:       c.Name(),
		ID:         spec.ID,
		Severity:   spec.Severity,
		Tokens:     spec.Tokens,
		Order:      order,
		Comments:   WantsComments(c),
	}
}

// SimpleName strips the package qualifier from a display name.
func SimpleName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Identifier returns the id shown to users: the configured id, or the simple
// name with a trailing "Check" removed.
func (r *Registration) Identifier() string {
	if r.ID != "" {
		return r.ID
	}
	return ShortName(r.Name)
}

// ShortName is SimpleName without the trailing "Check" suffix.
func ShortName(name string) string {
	return strings.TrimSuffix(SimpleName(name), "Check")
}
