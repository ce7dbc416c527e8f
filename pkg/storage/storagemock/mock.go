package storagemock

import (
	"context"
	"time"

	"github.com/raterudder/energysync/pkg/storage"
	"github.com/raterudder/energysync/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) LatestTime(ctx context.Context, measurement string) (time.Time, error) {
	args := m.Called(ctx, measurement)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockDatabase) WriteBatch(ctx context.Context, points []types.Point) error {
	args := m.Called(ctx, points)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
