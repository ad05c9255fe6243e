package types

// ValidationResult is the outcome of cleaning a filter value.
// When Valid is true, Value holds the canonical form sent to the backend.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// Accept returns a successful ValidationResult carrying value.
func Accept(value string) ValidationResult {
	return ValidationResult{Valid: true, Value: value}
}

// Reject returns a failed ValidationResult with an optional message.
func Reject(message string) ValidationResult {
	return ValidationResult{Valid: false, Message: message}
}

// Filter is one clause of a query predicate. A nil Value means the filter
// is still being edited and must not reach the backend.
type Filter struct {
	// UID is a process-local identity used to key UI state only. It is
	// never serialized.
	UID uint64 `json:"-"`

	// Slug names the filtered property
	Slug string `json:"slug"`

	// Value is the canonical serialized value, nil while incomplete
	Value *string `json:"value"`
}

// Complete reports whether the filter carries an accepted value.
func (f Filter) Complete() bool {
	return f.Value != nil
}

// WithValue returns a copy of f carrying value. The UID is preserved.
func (f Filter) WithValue(value *string) Filter {
	f.Value = value
	return f
}

// WireFilter is the backend-facing form of a complete filter.
type WireFilter struct {
	Slug  string `json:"slug"`
	Value string `json:"value"`
}

// Predicate is a list of filters plus an optional pre-filter.
type Predicate struct {
	Filters   []Filter   `json:"filters"`
	PreFilter *PreFilter `json:"pre_filter,omitempty"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
