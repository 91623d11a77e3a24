package testutils

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conneroisu/stt/internal/build"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateTempProject(t *testing.T) {
	projectDir := CreateTempProject(t)

	for _, dir := range []string{"templates", ".stt/cache"} {
		info, err := os.Stat(filepath.Join(projectDir, dir))
		require.NoError(t, err)
		assert.True(t, info.IsDir(), "Expected %s to be a directory", dir)
	}
}

func TestWriteTemplate(t *testing.T) {
	dir := t.TempDir()
	path := WriteTemplate(t, dir, "nested/T.tt", StandardTemplates["Hello"])

	assert.Equal(t, filepath.Join(dir, "nested", "T.tt"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, StandardTemplates["Hello"], string(data))
}

func TestCreateTestConfig(t *testing.T) {
	projectDir := CreateTempProject(t)
	cfg := CreateTestConfig(projectDir)

	assert.Equal(t, filepath.Join(projectDir, "templates"), cfg.Templates.BaseDir)
	assert.True(t, cfg.Templates.Provenance)
	assert.True(t, cfg.IsTemplate("x.stt"))
	assert.Equal(t, 2, cfg.Backend.Jobs)
}

func TestFakeBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("error diagnostics suppress the artifact", func(t *testing.T) {
		backend := &FakeBackend{Diagnostics: []build.Diagnostic{{IsError: true, Line: 42, Message: "boom"}}}
		compilation, err := backend.Compile(ctx, build.CompileRequest{})
		require.NoError(t, err)
		assert.Nil(t, compilation.Artifact)
		assert.Len(t, backend.Requests(), 1)
	})

	t.Run("runs record invocations", func(t *testing.T) {
		backend := &FakeBackend{Output: "out"}
		compilation, err := backend.Compile(ctx, build.CompileRequest{})
		require.NoError(t, err)
		require.NotNil(t, compilation.Artifact)

		exec, err := compilation.Artifact.Run(ctx, build.Invocation{SourcePath: "/t/T.tt"})
		require.NoError(t, err)
		assert.Equal(t, "out", exec.Output)
		require.Len(t, backend.Invocations(), 1)
		assert.Equal(t, "/t/T.tt", backend.Invocations()[0].SourcePath)

		require.NoError(t, compilation.Artifact.Close())
		assert.True(t, compilation.Artifact.(*FakeArtifact).Closed())
	})
}

func TestMockBackend(t *testing.T) {
	artifact := &MockArtifact{}
	artifact.On("Run", mock.Anything, mock.Anything).Return(&build.Execution{Output: "mocked"}, nil)
	artifact.On("Close").Return(nil)

	backend := &MockBackend{}
	backend.On("Compile", mock.Anything, mock.Anything).Return(&build.Compilation{Artifact: artifact}, nil)

	compilation, err := backend.Compile(context.Background(), build.CompileRequest{})
	require.NoError(t, err)
	exec, err := compilation.Artifact.Run(context.Background(), build.Invocation{})
	require.NoError(t, err)
	assert.Equal(t, "mocked", exec.Output)
	require.NoError(t, compilation.Artifact.Close())

	backend.AssertExpectations(t)
	artifact.AssertExpectations(t)
}

func TestWaitFor(t *testing.T) {
	start := time.Now()
	WaitFor(t, time.Second, func() bool { return time.Since(start) > 20*time.Millisecond })
}
