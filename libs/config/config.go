package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	once sync.Once
	env  *viper.Viper
)

// source returns the process-wide viper instance. A local .env file, when present,
// is loaded first so that real environment variables still take precedence.
func source() *viper.Viper {
	once.Do(func() {
		_ = godotenv.Load()
		env = viper.New()
		env.AutomaticEnv()
		env.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	})
	return env
}

func String(key, fallback string) string {
	v := strings.TrimSpace(source().GetString(key))
	if v == "" {
		return fallback
	}
	return v
}

func RequiredString(key string) (string, error) {
	v := strings.TrimSpace(source().GetString(key))
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func Port(key, fallback string) (string, error) {
	v := String(key, fallback)
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, v)
	}
	return v, nil
}

// Int returns the integer value of key, or fallback when unset or malformed.
func Int(key string, fallback int) int {
	raw := String(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func Bool(key string, fallback bool) bool {
	raw := String(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}

// Duration accepts Go duration strings ("90s", "5m") and bare integers as seconds.
func Duration(key string, fallback time.Duration) time.Duration {
	raw := String(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// Strings splits a comma separated value, dropping blanks.
func Strings(key string) []string {
	var out []string
	for _, part := range strings.Split(String(key, ""), ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
