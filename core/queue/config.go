package queue

import "time"

// Config carries worker tuning loaded from the environment.
type Config struct {
	PullInterval      time.Duration `env:"QUEUE_PULL_INTERVAL" envDefault:"3s"`
	LockTimeout       time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout   time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxConcurrentJobs int           `env:"QUEUE_MAX_CONCURRENT_JOBS" envDefault:"10"`
	MaxAttempts       int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	RetryBackoff      time.Duration `env:"QUEUE_RETRY_BACKOFF" envDefault:"30s"`
}
