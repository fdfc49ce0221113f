package wheel

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"omnilypro-gaming/pkg/errutil"
	"omnilypro-gaming/services/activity"
	"omnilypro-gaming/services/badge"
	"omnilypro-gaming/services/challenge"
	"omnilypro-gaming/services/discount"
	"omnilypro-gaming/services/ledger"
	"omnilypro-gaming/services/member"
	"omnilypro-gaming/services/notification"
	"omnilypro-gaming/services/prize"
	"omnilypro-gaming/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type testEnv struct {
	svc     *Service
	members *member.Service
	ledger  *ledger.Service
	db      *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t,
		&Config{}, &Spin{},
		&member.Member{},
		&ledger.Entry{}, &ledger.Balance{}, &ledger.CreditPool{},
		&discount.Code{},
		&notification.Notification{},
		&challenge.Template{}, &challenge.Instance{},
		&badge.Badge{}, &badge.MemberBadge{},
	)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	members := member.NewService(member.ServiceParams{DB: db, Node: node})
	ledgerSvc := ledger.NewService(ledger.ServiceParams{DB: db, Node: node})
	discounts := discount.NewService(discount.ServiceParams{DB: db, Node: node})
	notifications := notification.NewService(notification.ServiceParams{DB: db, Node: node})
	badges := badge.NewService(badge.ServiceParams{
		DB: db, Node: node, Members: members, Ledger: ledgerSvc, Notifications: notifications,
	})
	challenges := challenge.NewService(challenge.ServiceParams{
		DB: db, Node: node, Members: members, Ledger: ledgerSvc,
		Badges: badges, Discounts: discounts, Notifications: notifications,
	})
	activities := activity.NewService(activity.ServiceParams{
		DB: db, Members: members, Challenges: challenges,
		Asynq: asynq.NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:1"}),
	})

	svc := NewService(ServiceParams{
		DB: db, Node: node, Members: members, Ledger: ledgerSvc,
		Discounts: discounts, Notifications: notifications, Activities: activities,
	})

	return &testEnv{svc: svc, members: members, ledger: ledgerSvc, db: db}
}

func (e *testEnv) registerMember(t *testing.T) *member.Member {
	t.Helper()

	m, err := e.members.Register(context.Background(), member.RegisterParams{
		TenantID: "tenant", ExternalID: "ext-1", Email: "mario@example.com", Name: "Mario",
	})
	require.NoError(t, err)
	return m
}

func (e *testEnv) configure(t *testing.T, maxDailySpins int64, sectors ...Sector) {
	t.Helper()

	_, err := e.svc.UpsertConfig(context.Background(), UpsertConfigParams{
		TenantID: "tenant", Enabled: true, MaxDailySpins: maxDailySpins, Sectors: sectors,
	})
	require.NoError(t, err)
}

func seqRand(values ...float64) func() float64 {
	i := 0
	return func() float64 {
		v := values[i%len(values)]
		i++
		return v
	}
}

func requireStatus(t *testing.T, err error, status errutil.CoreStatus) {
	t.Helper()

	var be errutil.BaseError
	require.True(t, errors.As(err, &be), "expected a BaseError, got %v", err)
	require.Equal(t, status, be.Status())
}

func TestSpinNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)

	_, err := env.svc.Spin(context.Background(), "tenant", m.ID)
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestSpinDisabledWheel(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)

	_, err := env.svc.UpsertConfig(context.Background(), UpsertConfigParams{
		TenantID: "tenant", Enabled: false, MaxDailySpins: 3,
		Sectors: []Sector{{Label: "10 Punti", Type: prize.OutcomePoints, Value: 10, Weight: 100}},
	})
	require.NoError(t, err)

	_, err = env.svc.Spin(context.Background(), "tenant", m.ID)
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestSpinAwardsPoints(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 3, Sector{Label: "50 Punti", Type: prize.OutcomePoints, Value: 50, Weight: 100})
	env.svc.selector = prize.NewSelectorWithRand(seqRand(0.0))

	result, err := env.svc.Spin(context.Background(), "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, "50 Punti", result.Spin.SectorLabel)
	require.Equal(t, int64(50), result.Spin.PointsAwarded)

	balance, _, err := env.ledger.GetBalance(context.Background(), "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)
}

func TestSpinIssuesDiscountCode(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 3, Sector{Label: "Sconto 10%", Type: prize.OutcomeDiscount, Value: 10, Weight: 100})
	env.svc.selector = prize.NewSelectorWithRand(seqRand(0.0))

	result, err := env.svc.Spin(context.Background(), "tenant", m.ID)
	require.NoError(t, err)
	require.Len(t, result.Spin.DiscountCode, 10)
	require.Equal(t, "SPIN", result.Spin.DiscountCode[:4])
	require.Zero(t, result.Spin.PointsAwarded)
}

func TestSpinOnLosingSectorSendsNoNotification(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 3,
		Sector{Label: "10 Punti", Type: prize.OutcomePoints, Value: 10, Weight: 50},
		Sector{Label: "Riprova", Type: prize.OutcomeNothing, Weight: 50},
	)
	env.svc.selector = prize.NewSelectorWithRand(seqRand(0.9, 0.0))

	ctx := context.Background()

	losing, err := env.svc.Spin(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, prize.OutcomeNothing, losing.Spin.OutcomeType)

	var count int64
	require.NoError(t, env.db.Model(&notification.Notification{}).Count(&count).Error)
	require.Zero(t, count)

	winning, err := env.svc.Spin(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, prize.OutcomePoints, winning.Spin.OutcomeType)

	require.NoError(t, env.db.Model(&notification.Notification{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestSpinDailyLimit(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 2, Sector{Label: "Riprova", Type: prize.OutcomeNothing, Weight: 100})
	env.svc.selector = prize.NewSelectorWithRand(seqRand(0.0))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := env.svc.Spin(ctx, "tenant", m.ID)
		require.NoError(t, err)
	}

	_, err := env.svc.Spin(ctx, "tenant", m.ID)
	requireStatus(t, err, errutil.StatusTooManyRequests)
}

func TestSpinFreeSpinOutcomeExtendsAllowance(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 1,
		Sector{Label: "Spin Gratis", Type: prize.OutcomeFreeSpin, Weight: 50},
		Sector{Label: "Riprova", Type: prize.OutcomeNothing, Weight: 50},
	)
	env.svc.selector = prize.NewSelectorWithRand(seqRand(0.0, 0.9, 0.9))

	ctx := context.Background()

	first, err := env.svc.Spin(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, prize.OutcomeFreeSpin, first.Spin.OutcomeType)

	second, err := env.svc.Spin(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, prize.OutcomeNothing, second.Spin.OutcomeType)
	require.False(t, second.Spin.FreeSpinUsed)

	_, err = env.svc.Spin(ctx, "tenant", m.ID)
	requireStatus(t, err, errutil.StatusTooManyRequests)
}

func TestSpinConsumesGrantedFreeSpin(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 1, Sector{Label: "Riprova", Type: prize.OutcomeNothing, Weight: 100})
	env.svc.selector = prize.NewSelectorWithRand(seqRand(0.0))

	ctx := context.Background()

	_, err := env.svc.Spin(ctx, "tenant", m.ID)
	require.NoError(t, err)

	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		return env.members.AddFreeSpinsTx(ctx, tx, m.ID, 1)
	}))

	extra, err := env.svc.Spin(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.True(t, extra.Spin.FreeSpinUsed)

	refreshed, err := env.members.Get(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Zero(t, refreshed.FreeSpins)

	_, err = env.svc.Spin(ctx, "tenant", m.ID)
	requireStatus(t, err, errutil.StatusTooManyRequests)
}

func TestSpinAngleLandsOnWinningSector(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 10,
		Sector{Label: "10 Punti", Type: prize.OutcomePoints, Value: 10, Weight: 25},
		Sector{Label: "25 Punti", Type: prize.OutcomePoints, Value: 25, Weight: 25},
		Sector{Label: "50 Punti", Type: prize.OutcomePoints, Value: 50, Weight: 25},
		Sector{Label: "Riprova", Type: prize.OutcomeNothing, Weight: 25},
	)
	env.svc.selector = prize.NewSelectorWithRand(seqRand(0.6))

	result, err := env.svc.Spin(context.Background(), "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, 2, result.SectorIndex)
	require.InDelta(t, 5*360+2*90+45, result.Spin.Angle, 0.001)
}

func TestSpinHistoryNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 5, Sector{Label: "Riprova", Type: prize.OutcomeNothing, Weight: 100})
	env.svc.selector = prize.NewSelectorWithRand(seqRand(0.0))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := env.svc.Spin(ctx, "tenant", m.ID)
		require.NoError(t, err)
	}

	spins, err := env.svc.History(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Len(t, spins, 3)
}

func TestUpsertConfigValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.UpsertConfig(ctx, UpsertConfigParams{
		TenantID: "tenant", Enabled: true, MaxDailySpins: 0,
		Sectors: []Sector{{Label: "Riprova", Type: prize.OutcomeNothing, Weight: 100}},
	})
	requireStatus(t, err, errutil.StatusBadRequest)

	_, err = env.svc.UpsertConfig(ctx, UpsertConfigParams{
		TenantID: "tenant", Enabled: true, MaxDailySpins: 3,
		Sectors: []Sector{{Label: "Riprova", Type: prize.OutcomeNothing, Weight: -1}},
	})
	requireStatus(t, err, errutil.StatusBadRequest)
}

func TestUpsertConfigInvalidatesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.configure(t, 3, Sector{Label: "Riprova", Type: prize.OutcomeNothing, Weight: 100})

	cfg, err := env.svc.GetConfig(ctx, "tenant")
	require.NoError(t, err)
	require.Equal(t, int64(3), cfg.MaxDailySpins)

	env.configure(t, 5, Sector{Label: "Riprova", Type: prize.OutcomeNothing, Weight: 100})

	cfg, err = env.svc.GetConfig(ctx, "tenant")
	require.NoError(t, err)
	require.Equal(t, int64(5), cfg.MaxDailySpins)
}
