package config

import (
	"os"

	"github.com/spf13/cast"
)

// envString overrides *dst with the named environment variable when it is set.
func envString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

// envBool overrides *dst with the named environment variable when it parses as a boolean.
func envBool(dst *bool, name string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if b, err := cast.ToBoolE(v); err == nil {
		*dst = b
	}
}
