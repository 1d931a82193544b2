package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	cache  sync.Map // reflect.Type -> loaded config value
	dotenv sync.Once
)

// Load parses environment variables into the given config struct.
// Each config type is parsed once per process; subsequent calls for the
// same type return the cached value. A .env file in the working directory
// is loaded before the first parse if present.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return fmt.Errorf("config: target cannot be nil")
	}

	dotenv.Do(func() {
		// Missing .env is not an error; real environments set vars directly.
		_ = godotenv.Load()
	})

	key := reflect.TypeOf(*cfg)
	if cached, ok := cache.Load(key); ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", key.String(), err)
	}

	cache.Store(key, *cfg)
	return nil
}

// MustLoad is like Load but panics on failure.
// Intended for application startup where a missing required variable
// should stop the process immediately.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
