package dedupe

// Option configures the in-memory deduper.
type Option func(*ringDeduper)

// WithMaxSize bounds how many ids are remembered. Once full, the oldest id
// is forgotten first. maxSize <= 0 means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *ringDeduper) {
		d.limit = maxSize
	}
}
