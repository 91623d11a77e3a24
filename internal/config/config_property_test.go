//go:build property
// +build property

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestConfigurationProperties tests validation properties
func TestConfigurationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	valid := func(baseDir string, timeout int64, jobs int) *Config {
		return &Config{
			Templates: TemplatesConfig{BaseDir: baseDir, Extensions: DefaultExtensions},
			Backend:   BackendConfig{Timeout: time.Duration(timeout), Jobs: jobs},
			Log:       LogConfig{Level: "info", Format: "text"},
		}
	}

	// Property: a non-blank base dir with a positive timeout and job count validates
	properties.Property("valid configs validate", prop.ForAll(
		func(baseDir string, timeout int64, jobs int) bool {
			if strings.TrimSpace(baseDir) == "" {
				return true
			}
			return validateConfig(valid(baseDir, timeout, jobs)) == nil
		},
		gen.AlphaString(),
		gen.Int64Range(1, int64(time.Hour)),
		gen.IntRange(1, 64),
	))

	// Property: a blank base dir never validates
	properties.Property("blank base dir rejected", prop.ForAll(
		func(n int) bool {
			return validateConfig(valid(strings.Repeat(" ", n), int64(time.Second), 1)) != nil
		},
		gen.IntRange(0, 8),
	))

	// Property: a non-positive timeout never validates
	properties.Property("non-positive timeout rejected", prop.ForAll(
		func(timeout int64) bool {
			return validateConfig(valid(".", timeout, 1)) != nil
		},
		gen.Int64Range(-int64(time.Hour), 0),
	))

	properties.TestingRun(t)
}
