package dhash

import "go.uber.org/zap"

// Option configures a Table.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	maxCapacity int
}

func defaultOptions() options {
	return options{logger: zap.NewNop()}
}

// WithLogger sets the logger used to report resizes. A nil logger disables
// logging.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = zap.NewNop()
		}
		o.logger = logger
	}
}

// WithMaxCapacity caps the number of slots the table may grow to. Zero means
// unbounded. Once the cap is reached, inserts keep succeeding above the load
// factor until the probe sequence finds no free slot, at which point Insert
// returns ErrTableFull.
func WithMaxCapacity(n int) Option {
	return func(o *options) {
		o.maxCapacity = n
	}
}
