package mocks

import (
	"context"

	"plagcheck/internal/model"
	"plagcheck/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockComparisonService struct {
	mock.Mock
}

func (m *MockComparisonService) Compare(ctx context.Context, uploads []service.Upload) (*model.ComparisonResult, error) {
	args := m.Called(ctx, uploads)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ComparisonResult), args.Error(1)
}

func (m *MockComparisonService) CompareFiles(ctx context.Context, paths []string) (*model.ComparisonResult, error) {
	args := m.Called(ctx, paths)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ComparisonResult), args.Error(1)
}
