// Package config provides fail-open environment loading for long-running
// components. An invalid value never stops the process: the default is kept
// and the caller receives a warning to log and count.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadResult is the outcome of reading one environment variable.
type LoadResult[T any] struct {
	Key   string
	Value T

	// Warning is set when the raw value was rejected.
	Warning         string
	FallbackApplied bool
}

func load[T any](key string, def T, parse func(string) (T, error), validate func(T) error) LoadResult[T] {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return LoadResult[T]{Key: key, Value: def}
	}

	v, err := parse(raw)
	if err == nil && validate != nil {
		err = validate(v)
	}
	if err != nil {
		return LoadResult[T]{
			Key:             key,
			Value:           def,
			Warning:         fmt.Sprintf("invalid %s=%q: %v, falling back to default %v", key, raw, err, def),
			FallbackApplied: true,
		}
	}
	return LoadResult[T]{Key: key, Value: v}
}

// LoadEnvWithFallback reads a string. validate may be nil.
func LoadEnvWithFallback(key, def string, validate func(string) error) LoadResult[string] {
	return load(key, def, func(s string) (string, error) { return s, nil }, validate)
}

// LoadEnvInt reads a base-10 integer.
func LoadEnvInt(key string, def int, validate func(int) error) LoadResult[int] {
	return load(key, def, func(s string) (int, error) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("not an integer")
		}
		return n, nil
	}, validate)
}

// LoadEnvDuration reads a time.ParseDuration string such as "15m".
func LoadEnvDuration(key string, def time.Duration, validate func(time.Duration) error) LoadResult[time.Duration] {
	return load(key, def, time.ParseDuration, validate)
}

// LoadEnvBool reads a strconv.ParseBool value.
func LoadEnvBool(key string, def bool) LoadResult[bool] {
	return load(key, def, strconv.ParseBool, nil)
}
