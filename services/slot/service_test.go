package slot

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
		&Config{}, &Play{},
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

func (e *testEnv) configure(t *testing.T, maxDailySpins int64, symbols []SymbolWeight, combos []Combo) {
	t.Helper()

	_, err := e.svc.UpsertConfig(context.Background(), UpsertConfigParams{
		TenantID: "tenant", Enabled: true, MaxDailySpins: maxDailySpins,
		Symbols: symbols, Combos: combos,
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

func TestSpinTriplePaysOut(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 3,
		[]SymbolWeight{{Symbol: "🍒", Weight: 50}, {Symbol: "🍋", Weight: 50}},
		[]Combo{{Label: "Tripla", Pattern: PatternThreeMatch, Type: prize.OutcomePoints, Value: 200}},
	)
	env.svc.engine = NewEngineWithRand(seqRand(0.0))

	result, err := env.svc.Spin(context.Background(), "tenant", m.ID)
	require.NoError(t, err)
	require.True(t, result.Won)
	require.Equal(t, "Tripla", result.Combo.Label)
	require.Equal(t, []string{"🍒", "🍒", "🍒"}, []string(result.Play.Reels))
	require.Equal(t, int64(200), result.Play.PointsAwarded)

	balance, _, err := env.ledger.GetBalance(context.Background(), "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(200), balance)
}

func TestSpinNoMatchRecordsNothing(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 3,
		[]SymbolWeight{{Symbol: "🍒", Weight: 50}, {Symbol: "🍋", Weight: 50}},
		[]Combo{{Label: "Tripla", Pattern: PatternThreeMatch, Type: prize.OutcomePoints, Value: 200}},
	)
	env.svc.engine = NewEngineWithRand(seqRand(0.0, 0.9, 0.0))

	result, err := env.svc.Spin(context.Background(), "tenant", m.ID)
	require.NoError(t, err)
	require.False(t, result.Won)
	require.Equal(t, prize.OutcomeNothing, result.Play.OutcomeType)
	require.Zero(t, result.Play.PointsAwarded)

	balance, _, err := env.ledger.GetBalance(context.Background(), "tenant", m.ID)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestSpinFreeSpinComboGrantsSpins(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 3,
		[]SymbolWeight{{Symbol: SymbolStar, Weight: 100}},
		[]Combo{{Label: "Stella Fortunata", Pattern: PatternAnyStar, Type: prize.OutcomeFreeSpin, Value: 2}},
	)
	env.svc.engine = NewEngineWithRand(seqRand(0.0))

	_, err := env.svc.Spin(context.Background(), "tenant", m.ID)
	require.NoError(t, err)

	refreshed, err := env.members.Get(context.Background(), "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), refreshed.FreeSpins)
}

func TestSpinDailyLimit(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 2,
		[]SymbolWeight{{Symbol: "🍒", Weight: 100}},
		nil,
	)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := env.svc.Spin(ctx, "tenant", m.ID)
		require.NoError(t, err)
	}

	_, err := env.svc.Spin(ctx, "tenant", m.ID)
	requireStatus(t, err, errutil.StatusTooManyRequests)
}

func TestUpsertConfigJackpotRequiresSymbol(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.UpsertConfig(context.Background(), UpsertConfigParams{
		TenantID: "tenant", Enabled: true, MaxDailySpins: 3,
		Symbols: []SymbolWeight{{Symbol: SymbolSeven, Weight: 100}},
		Combos:  []Combo{{Label: "Jackpot", Pattern: PatternJackpot, Type: prize.OutcomePoints, Value: 1000}},
	})
	requireStatus(t, err, errutil.StatusBadRequest)
}
