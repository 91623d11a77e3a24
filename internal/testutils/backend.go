package testutils

import (
	"context"
	"sync"

	"github.com/conneroisu/stt/internal/build"
	"github.com/stretchr/testify/mock"
)

// MockBackend is a testify mock of build.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Compile(ctx context.Context, req build.CompileRequest) (*build.Compilation, error) {
	args := m.Called(ctx, req)
	compilation, _ := args.Get(0).(*build.Compilation)
	return compilation, args.Error(1)
}

// MockArtifact is a testify mock of build.Artifact
type MockArtifact struct {
	mock.Mock
}

func (m *MockArtifact) Run(ctx context.Context, inv build.Invocation) (*build.Execution, error) {
	args := m.Called(ctx, inv)
	execution, _ := args.Get(0).(*build.Execution)
	return execution, args.Error(1)
}

func (m *MockArtifact) Close() error {
	return m.Called().Error(0)
}

// FakeBackend records what it is asked to compile and answers with fixed
// diagnostics, or with a FakeArtifact when none of them is an error.
type FakeBackend struct {
	Diagnostics []build.Diagnostic
	Output      string
	Failure     *build.Failure
	CompileErr  error

	mutex       sync.Mutex
	requests    []build.CompileRequest
	invocations []build.Invocation
}

func (f *FakeBackend) Compile(_ context.Context, req build.CompileRequest) (*build.Compilation, error) {
	f.mutex.Lock()
	f.requests = append(f.requests, req)
	f.mutex.Unlock()

	if f.CompileErr != nil {
		return nil, f.CompileErr
	}

	compilation := &build.Compilation{Diagnostics: f.Diagnostics}
	for _, d := range f.Diagnostics {
		if d.IsError {
			return compilation, nil
		}
	}
	compilation.Artifact = &FakeArtifact{backend: f}
	return compilation, nil
}

// Requests returns every compile request received so far.
func (f *FakeBackend) Requests() []build.CompileRequest {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]build.CompileRequest(nil), f.requests...)
}

// Invocations returns every run of an artifact this backend produced.
func (f *FakeBackend) Invocations() []build.Invocation {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]build.Invocation(nil), f.invocations...)
}

// FakeArtifact answers every run with its backend's Output or Failure.
type FakeArtifact struct {
	backend *FakeBackend
	closed  bool
}

func (a *FakeArtifact) Run(_ context.Context, inv build.Invocation) (*build.Execution, error) {
	a.backend.mutex.Lock()
	a.backend.invocations = append(a.backend.invocations, inv)
	a.backend.mutex.Unlock()

	if a.backend.Failure != nil {
		return &build.Execution{Failure: a.backend.Failure}, nil
	}
	return &build.Execution{Output: a.backend.Output}, nil
}

func (a *FakeArtifact) Close() error {
	a.closed = true
	return nil
}

// Closed reports whether Close was called.
func (a *FakeArtifact) Closed() bool {
	return a.closed
}
