package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/heap-dump/internal/repository"
	"github.com/heap-dump/pkg/model"
)

// MockDumpRepository is a mock implementation of DumpRepository.
type MockDumpRepository struct {
	mock.Mock
}

var _ repository.DumpRepository = (*MockDumpRepository)(nil)

// SaveDump mocks the SaveDump method.
func (m *MockDumpRepository) SaveDump(ctx context.Context, rec *model.DumpRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// GetDump mocks the GetDump method.
func (m *MockDumpRepository) GetDump(ctx context.Context, id string) (*model.DumpRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DumpRecord), args.Error(1)
}

// ListDumps mocks the ListDumps method.
func (m *MockDumpRepository) ListDumps(ctx context.Context, scene string, limit int) ([]*model.DumpRecord, error) {
	args := m.Called(ctx, scene, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.DumpRecord), args.Error(1)
}

// DeleteDump mocks the DeleteDump method.
func (m *MockDumpRepository) DeleteDump(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ExpectAnySave sets up an expectation for any SaveDump call.
func (m *MockDumpRepository) ExpectAnySave(err error) *mock.Call {
	return m.On("SaveDump", mock.Anything, mock.Anything).Return(err)
}
