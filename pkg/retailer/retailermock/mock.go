package retailermock

import (
	"context"
	"time"

	"github.com/raterudder/energysync/pkg/retailer"
	"github.com/raterudder/energysync/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockSource struct {
	mock.Mock
}

var _ retailer.Source = (*MockSource)(nil)

func (m *MockSource) Login(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSource) Account(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *MockSource) Usage(ctx context.Context, token, account string, date time.Time) (types.UsageDay, error) {
	args := m.Called(ctx, token, account, date)
	return args.Get(0).(types.UsageDay), args.Error(1)
}

func (m *MockSource) Offerings(ctx context.Context, token, account string) (types.Offerings, error) {
	args := m.Called(ctx, token, account)
	return args.Get(0).(types.Offerings), args.Error(1)
}
