package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// lookup returns parse(value) for a set variable; unset or unparsable values
// fall back to def.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := parse(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return v
}

func getEnv(key, defaultVal string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	return lookup(key, defaultVal, strconv.Atoi)
}

func getEnvAsBool(key string, defaultVal bool) bool {
	return lookup(key, defaultVal, strconv.ParseBool)
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	return lookup(key, defaultVal, time.ParseDuration)
}

func getEnvAsDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	return lookup(key, defaultVal, decimal.NewFromString)
}

// getEnvAsStringSlice splits a comma separated list, ignoring blank entries.
func getEnvAsStringSlice(key string, defaults []string) []string {
	items := lookup(key, nil, func(v string) ([]string, error) {
		return lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string {
			return strings.TrimSpace(s)
		})), nil
	})
	if len(items) == 0 {
		return defaults
	}
	return items
}
