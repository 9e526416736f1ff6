package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envValue reads key and parses it with parse, falling back to def when the
// variable is unset or malformed.
func envValue[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func envString(key, def string) string {
	if raw, ok := os.LookupEnv(key); ok {
		return raw
	}
	return def
}

func envInt(key string, def int) int {
	return envValue(key, def, strconv.Atoi)
}

func envBool(key string, def bool) bool {
	return envValue(key, def, strconv.ParseBool)
}

func envDuration(key string, def time.Duration) time.Duration {
	return envValue(key, def, time.ParseDuration)
}

func envList(key string, def []string) []string {
	return envValue(key, def, func(raw string) ([]string, error) {
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil, strconv.ErrSyntax
		}
		return out, nil
	})
}

func normalize(value, def string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return def
	}
	return value
}
