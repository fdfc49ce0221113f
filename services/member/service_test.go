package member

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"omnilypro-gaming/pkg/errutil"
	"omnilypro-gaming/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &Member{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node}), db
}

func register(t *testing.T, svc *Service) *Member {
	t.Helper()

	m, err := svc.Register(context.Background(), RegisterParams{
		TenantID: "tenant", ExternalID: "ext-1", Email: "mario@example.com", Name: "Mario",
	})
	require.NoError(t, err)
	return m
}

func TestRegisterAndGet(t *testing.T) {
	svc, _ := newTestService(t)

	m := register(t, svc)
	require.NotEmpty(t, m.ID)
	require.False(t, m.RegisteredAt.IsZero())

	got, err := svc.Get(context.Background(), "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, m.ExternalID, got.ExternalID)
}

func TestRegisterDuplicateExternalID(t *testing.T) {
	svc, _ := newTestService(t)
	register(t, svc)

	_, err := svc.Register(context.Background(), RegisterParams{
		TenantID: "tenant", ExternalID: "ext-1",
	})
	require.Error(t, err)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusConflict, be.Status())
}

func TestGetUnknownMember(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "tenant", "missing")
	require.Error(t, err)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusNotFound, be.Status())
}

func TestAddCountersAccumulate(t *testing.T) {
	svc, db := newTestService(t)
	m := register(t, svc)
	ctx := context.Background()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.AddCountersTx(ctx, tx, m.ID, CounterDelta{Purchases: 1, SpentCents: 2500, Visits: 1})
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.AddCountersTx(ctx, tx, m.ID, CounterDelta{Purchases: 1, SpentCents: 1500})
	}))

	got, err := svc.Get(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.PurchaseCount)
	require.Equal(t, int64(4000), got.TotalSpentCents)
	require.Equal(t, int64(1), got.VisitCount)
}

func TestTouchActivityStreak(t *testing.T) {
	svc, db := newTestService(t)
	m := register(t, svc)
	ctx := context.Background()

	day1 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	touch := func(at time.Time) {
		current, err := svc.Get(ctx, "tenant", m.ID)
		require.NoError(t, err)
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return svc.TouchActivity(ctx, tx, current, at)
		}))
	}

	touch(day1)
	got, err := svc.Get(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.StreakDays)

	// Same day keeps the streak.
	touch(day1.Add(5 * time.Hour))
	got, err = svc.Get(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.StreakDays)

	// Next day extends it.
	touch(day1.Add(24 * time.Hour))
	got, err = svc.Get(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.StreakDays)

	// A gap resets to one.
	touch(day1.Add(4 * 24 * time.Hour))
	got, err = svc.Get(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.StreakDays)
}

func TestTouchActivityStreakUsesLocalDays(t *testing.T) {
	svc, db := newTestService(t)
	m := register(t, svc)
	ctx := context.Background()

	zone := time.FixedZone("UTC+10", 10*60*60)

	touch := func(at time.Time) {
		current, err := svc.Get(ctx, "tenant", m.ID)
		require.NoError(t, err)
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return svc.TouchActivity(ctx, tx, current, at)
		}))
	}

	// Both instants fall on the same UTC day, but locally they are
	// consecutive days and must extend the streak.
	touch(time.Date(2026, 8, 24, 23, 30, 0, 0, zone))
	touch(time.Date(2026, 8, 25, 0, 30, 0, 0, zone))

	got, err := svc.Get(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.StreakDays)
}

func TestSnapshotStats(t *testing.T) {
	svc, db := newTestService(t)
	m := register(t, svc)
	ctx := context.Background()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.AddCountersTx(ctx, tx, m.ID, CounterDelta{Purchases: 3, Referrals: 1})
	}))

	stats, err := svc.SnapshotStats(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.True(t, stats.Registered)
	require.Equal(t, int64(3), stats.PurchaseCount)
	require.Equal(t, int64(1), stats.Referrals)
	require.GreaterOrEqual(t, stats.DaysSinceRegistration, int64(0))
}

func TestTenantsAndListIDs(t *testing.T) {
	svc, _ := newTestService(t)
	m := register(t, svc)

	_, err := svc.Register(context.Background(), RegisterParams{
		TenantID: "other", ExternalID: "ext-9",
	})
	require.NoError(t, err)

	tenants, err := svc.Tenants(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"tenant", "other"}, tenants)

	ids, err := svc.ListIDs(context.Background(), "tenant")
	require.NoError(t, err)
	require.Equal(t, []string{m.ID}, ids)
}
