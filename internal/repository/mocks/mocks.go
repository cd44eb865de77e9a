package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// SnapshotRepository is a mock for repository.SnapshotRepository.
type SnapshotRepository struct {
	mock.Mock
}

func (m *SnapshotRepository) Load(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if data, ok := args.Get(0).([]byte); ok {
		return data, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SnapshotRepository) Save(ctx context.Context, key string, payload []byte) error {
	args := m.Called(ctx, key, payload)
	return args.Error(0)
}

// Generator is a mock for narrative.Generator.
type Generator struct {
	mock.Mock
}

func (m *Generator) Generate(ctx context.Context, contextSummary, actor, action string) (string, error) {
	args := m.Called(ctx, contextSummary, actor, action)
	return args.String(0), args.Error(1)
}
