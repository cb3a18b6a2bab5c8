package publisher

// Option applies a configuration option to the NATSPublisher.
type Option func(*NATSPublisher)

// WithSubject sets the subject events are published on.
func WithSubject(subject string) Option {
	return func(p *NATSPublisher) {
		if subject != "" {
			p.subject = subject
		}
	}
}

// WithConnName sets the client name reported to the server.
func WithConnName(name string) Option {
	return func(p *NATSPublisher) {
		if name != "" {
			p.connName = name
		}
	}
}
