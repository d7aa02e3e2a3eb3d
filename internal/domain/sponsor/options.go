package sponsor

// Mode selects how malformed rows are handled.
type Mode int

const (
	// Permissive drops malformed rows and counts them.
	Permissive Mode = iota
	// Strict fails the build and reports every malformed row.
	Strict
)

// DuplicatePolicy decides which row wins when two rows share a merchant
// name after normalization. The candidate keeps the position of the first
// row either way, so tie-breaking in the matcher is unaffected.
type DuplicatePolicy int

const (
	LastWriteWins DuplicatePolicy = iota
	FirstWriteWins
)

// Option configures Build.
type Option func(*builder)

// WithValidation sets the validation mode. Default Permissive.
func WithValidation(m Mode) Option {
	return func(b *builder) {
		b.mode = m
	}
}

// WithDuplicatePolicy sets the duplicate policy. Default LastWriteWins.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(b *builder) {
		b.duplicates = p
	}
}

// ParseMode maps "strict" to Strict and anything else to Permissive.
func ParseMode(s string) Mode {
	if s == "strict" {
		return Strict
	}
	return Permissive
}

// ParseDuplicatePolicy maps "first" to FirstWriteWins and anything else to
// LastWriteWins.
func ParseDuplicatePolicy(s string) DuplicatePolicy {
	if s == "first" {
		return FirstWriteWins
	}
	return LastWriteWins
}
