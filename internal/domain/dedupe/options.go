package dedupe

// Option applies a configuration option to the guard.
type Option func(*inFlightGuard)

// WithMaxSize bounds the number of keys held at once.
// A value <= 0 removes the bound.
func WithMaxSize(maxSize int) Option {
	return func(g *inFlightGuard) {
		g.maxSize = maxSize
	}
}
