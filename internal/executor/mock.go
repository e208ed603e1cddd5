package executor

import (
	"context"

	"github.com/atlanticdynamic/scriptgate/internal/plugins"
	"github.com/stretchr/testify/mock"
)

// Verify that MockExecutor implements the loader's Executor interface
var _ plugins.Executor = (*MockExecutor)(nil)

// MockExecutor is a mock script executor for testing
type MockExecutor struct {
	mock.Mock
}

// Execute is a mock implementation of the Executor.Execute method
func (m *MockExecutor) Execute(ctx context.Context, d *plugins.Descriptor, done func(error)) {
	m.Called(ctx, d, done)
}

// NewMockExecutor creates a MockExecutor that immediately reports the given
// outcome for every descriptor.
func NewMockExecutor(outcome error) *MockExecutor {
	m := &MockExecutor{}
	m.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			done := args.Get(2).(func(error))
			done(outcome)
		})
	return m
}
