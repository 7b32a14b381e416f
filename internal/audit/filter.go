package audit

// Filter decides whether an event is reported.
type Filter interface {
	Accept(ev *Event) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(ev *Event) bool

func (f FilterFunc) Accept(ev *Event) bool { return f(ev) }

// FilterSet is an ordered chain; an event passes only if every filter accepts it.
type FilterSet struct {
	filters []Filter
}

func NewFilterSet(filters ...Filter) *FilterSet {
	return &FilterSet{filters: filters}
}

// Add appends f to the chain.
func (s *FilterSet) Add(f Filter) {
	s.filters = append(s.filters, f)
}

func (s *FilterSet) Len() int { return len(s.filters) }

// Accept stops at the first rejecting filter.
func (s *FilterSet) Accept(ev *Event) bool {
	for _, f := range s.filters {
		if !f.Accept(ev) {
			return false
		}
	}
	return true
}

// SeverityFilter rejects events below Min.
type SeverityFilter struct {
	Min Severity
}

func (f SeverityFilter) Accept(ev *Event) bool {
	return ev.Severity().Rank() >= f.Min.Rank()
}
