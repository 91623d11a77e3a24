// Package validation checks the values stt passes to the Go toolchain.
//
// The go binary is started with os/exec and module requirements are written
// into generated go.mod files, so both are rejected when they carry shell
// metacharacters, line breaks or anything else that could smuggle in an
// extra command or directive.
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var dangerousChars = []string{";", "&", "|", "$", "`", "<", ">", "\"", "'", "\n", "\r", "\x00"}

var (
	goBinaryPattern   = regexp.MustCompile(`^go[0-9a-z.]*(\.exe)?$`)
	modulePathPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._~\-]*(/[A-Za-z0-9._~\-]+)*$`)
	versionPattern    = regexp.MustCompile(`^v\d+\.\d+\.\d+(-[0-9A-Za-z.\-]+)?(\+[0-9A-Za-z.\-]+)?$`)
)

// ValidateArgument rejects shell metacharacters, control characters and
// path traversal.
func ValidateArgument(arg string) error {
	for _, char := range dangerousChars {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}

	if strings.Contains(arg, "..") {
		return fmt.Errorf("contains path traversal: %s", arg)
	}

	return nil
}

// ValidateGoBinary accepts "go", a versioned wrapper such as "go1.22.0", or
// a path ending in one of them.
func ValidateGoBinary(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("go binary cannot be empty")
	}
	if err := ValidateArgument(filepath.Clean(path)); err != nil {
		return fmt.Errorf("invalid go binary '%s': %w", path, err)
	}

	base := strings.ToLower(filepath.Base(path))
	if !goBinaryPattern.MatchString(base) {
		return fmt.Errorf("go binary '%s' is not a go tool", path)
	}

	return nil
}

// ValidateRequirement checks a "path version" module requirement.
func ValidateRequirement(req string) error {
	fields := strings.Fields(req)
	if len(fields) != 2 {
		return fmt.Errorf("module %q must be \"path version\"", req)
	}
	if err := ValidateArgument(req); err != nil {
		return fmt.Errorf("module %q: %w", req, err)
	}

	path, version := fields[0], fields[1]
	if !modulePathPattern.MatchString(path) {
		return fmt.Errorf("module %q has an invalid path", req)
	}
	if !versionPattern.MatchString(version) {
		return fmt.Errorf("module %q has an invalid version, expected vMAJOR.MINOR.PATCH", req)
	}

	return nil
}
