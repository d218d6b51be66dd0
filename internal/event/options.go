package event

// BusOption configures a Bus.
type BusOption func(*busConfig)

type busConfig struct {
	errorHandler ErrorHandler
}

func defaultBusConfig() busConfig {
	return busConfig{
		errorHandler: func(any, Subscription, error) {},
	}
}

// WithErrorHandler sets the function told about failing handlers.
func WithErrorHandler(h ErrorHandler) BusOption {
	return func(c *busConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}
