package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/segyhp/loan-ledger/internal/database"
	"github.com/segyhp/loan-ledger/internal/events"
	"github.com/segyhp/loan-ledger/internal/lock"
	"github.com/segyhp/loan-ledger/internal/repository"

	"github.com/stretchr/testify/require"
)

// tickingClock returns a strictly increasing time on every call.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, published ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type testEnv struct {
	service   *LoanService
	loans     repository.LoanRepository
	payments  repository.PaymentRepository
	publisher *recordingPublisher
}

func setupService(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "ledger.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repository.Migrate(ctx, db))

	env := &testEnv{
		loans:     repository.NewLoanRepository(db),
		payments:  repository.NewPaymentRepository(db),
		publisher: &recordingPublisher{},
	}

	clock := newTickingClock()
	opts = append([]Option{WithPublisher(env.publisher), WithClock(clock.Now)}, opts...)
	env.service = NewLoanService(env.loans, env.payments, lock.NewLocalLocker(), DefaultPolicy(), opts...)

	return env
}
