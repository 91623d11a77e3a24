package testutils

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/conneroisu/stt/internal/config"
	"github.com/stretchr/testify/require"
)

// CreateTempProject creates a temporary project with a templates directory
func CreateTempProject(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()

	for _, dir := range []string{"templates", ".stt/cache"} {
		err := os.MkdirAll(filepath.Join(tempDir, dir), 0o755)
		require.NoError(t, err)
	}

	return tempDir
}

// WriteTemplate writes a template file and returns its path. Missing parent
// directories are created.
func WriteTemplate(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// CreateTestConfig creates a configuration rooted at projectDir
func CreateTestConfig(projectDir string) *config.Config {
	return &config.Config{
		Templates: config.TemplatesConfig{
			BaseDir:    filepath.Join(projectDir, "templates"),
			Extensions: append([]string(nil), config.DefaultExtensions...),
			Provenance: true,
			StagingDir: filepath.Join(projectDir, ".stt", "staging"),
		},
		Backend: config.BackendConfig{
			GoBinary:  config.DefaultGoBinary,
			Timeout:   config.DefaultTimeout,
			CacheDir:  filepath.Join(projectDir, ".stt", "cache"),
			CacheSize: config.DefaultCacheSize,
			Jobs:      2,
		},
		Registry: config.RegistryConfig{
			Snapshot: filepath.Join(projectDir, ".stt", "registry.msgpack"),
		},
		Watch: config.WatchConfig{
			Debounce: 20 * time.Millisecond,
			Paths:    []string{filepath.Join(projectDir, "templates")},
			Ignore:   []string{".git", ".stt"},
		},
		Log: config.LogConfig{
			Level:  "debug",
			Format: "text",
		},
	}
}

// RequireGo skips the test when no go tool is on PATH and returns its path.
func RequireGo(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping go toolchain test in short mode")
	}
	path, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not available")
	}
	return path
}

// StandardTemplates are small templates shared by tests
var StandardTemplates = map[string]string{
	"Hello": `Hello <#= "World" #>!`,
	"Loop": `<# for i := 1; i <= 3; i++ { #>item <#= i #>
<# } #>`,
	"Properties": `<#@ property name="Name" type="string" #>
<#@ property name="Count" type="int" #>
<#= Name #>:<#= Count #>`,
	"ClassBody": `<#@ import namespace="strings" #>
<#= shout("hi") #>
<#+
func shout(s string) string { return strings.ToUpper(s) + "!" }
#>`,
}

// WaitForFileChange waits for a file to be modified (useful for testing file watchers)
func WaitForFileChange(
	t *testing.T,
	filePath string,
	originalModTime time.Time,
	timeout time.Duration,
) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		info, err := os.Stat(filePath)
		if err == nil && info.ModTime().After(originalModTime) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s was not modified within %v", filePath, timeout)
}

// WaitFor polls cond until it holds or timeout passes
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v", timeout)
}
