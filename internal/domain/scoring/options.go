package scoring

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithFormula replaces the points formula. Default Simple.
func WithFormula(f Formula) Option {
	return func(e *Engine) {
		if f != nil {
			e.formula = f
		}
	}
}
