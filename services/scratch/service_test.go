package scratch

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
		&Config{}, &Card{},
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
		Notifications: notifications, Activities: activities,
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

func testSymbolConfig() []Symbol {
	return []Symbol{
		{Symbol: "🍒", Points: 50},
		{Symbol: "🍋", Points: 75},
		{Symbol: "💎", Points: 100},
		{Symbol: "⭐", Points: 200},
		{Symbol: "🎁", Points: 500},
	}
}

func (e *testEnv) configure(t *testing.T, maxDaily int64, tiers []TierBand) {
	t.Helper()

	_, err := e.svc.UpsertConfig(context.Background(), UpsertConfigParams{
		TenantID: "tenant", Enabled: true, MaxDailyCards: maxDaily,
		Symbols: testSymbolConfig(), Tiers: tiers,
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

// revealUntilDone scratches cells in order until the card completes,
// returning the first winning result if any.
func revealUntilDone(t *testing.T, env *testEnv, m *member.Member, cardID string) *Result {
	t.Helper()

	var winning *Result
	for cell := 0; cell < gridSize; cell++ {
		result, err := env.svc.Reveal(context.Background(), "tenant", m.ID, cardID, cell)
		if err != nil {
			var be errutil.BaseError
			require.True(t, errors.As(err, &be))
			require.Equal(t, errutil.StatusConflict, be.Status())
			break
		}
		if result.Won {
			winning = result
		}
		if result.Card.Status == CardCompleted {
			break
		}
	}
	return winning
}

func TestBuyNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)

	_, err := env.svc.Buy(context.Background(), "tenant", m.ID)
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestBuyWinningCardPaysOnThirdMatch(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 5, []TierBand{
		{Tier: TierMedium, Symbol: "💎", Weight: 100},
	})
	env.svc.selector = prize.NewSelectorWithRand(seqRand(0.0))

	ctx := context.Background()
	card, err := env.svc.Buy(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, TierMedium, card.Tier)
	require.Equal(t, CardActive, card.Status)

	winning := revealUntilDone(t, env, m, card.ID)
	require.NotNil(t, winning)
	require.NotEmpty(t, winning.Card.MatchedSymbol)
	require.Equal(t, symbolPoints(testSymbolConfig(), winning.Card.MatchedSymbol), winning.Card.PointsAwarded)
	require.True(t, winning.Card.RewardsClaimed)

	balance, _, err := env.ledger.GetBalance(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, winning.Card.PointsAwarded, balance)
}

func TestBuyNoWinCardNeverPays(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 5, []TierBand{
		{Tier: TierNoWin, Weight: 100},
	})
	env.svc.selector = prize.NewSelectorWithRand(seqRand(0.0))

	ctx := context.Background()
	card, err := env.svc.Buy(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, TierNoWin, card.Tier)

	winning := revealUntilDone(t, env, m, card.ID)
	require.Nil(t, winning)

	final, err := env.svc.GetCard(ctx, "tenant", m.ID, card.ID)
	require.NoError(t, err)
	require.Equal(t, CardCompleted, final.Status)
	require.False(t, final.RewardsClaimed)

	balance, _, err := env.ledger.GetBalance(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestRevealAfterCompletionIsRejected(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 5, []TierBand{
		{Tier: TierSmall, Symbol: "🍒", Weight: 100},
	})
	env.svc.selector = prize.NewSelectorWithRand(seqRand(0.0))

	ctx := context.Background()
	card, err := env.svc.Buy(ctx, "tenant", m.ID)
	require.NoError(t, err)

	winning := revealUntilDone(t, env, m, card.ID)
	require.NotNil(t, winning)

	_, err = env.svc.Reveal(ctx, "tenant", m.ID, card.ID, 0)
	requireStatus(t, err, errutil.StatusConflict)

	balance, _, err := env.ledger.GetBalance(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, winning.Card.PointsAwarded, balance)
}

func TestRevealValidation(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 5, []TierBand{
		{Tier: TierNoWin, Weight: 100},
	})

	ctx := context.Background()
	card, err := env.svc.Buy(ctx, "tenant", m.ID)
	require.NoError(t, err)

	_, err = env.svc.Reveal(ctx, "tenant", m.ID, card.ID, 9)
	requireStatus(t, err, errutil.StatusBadRequest)

	_, err = env.svc.Reveal(ctx, "tenant", m.ID, "missing", 0)
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestBuyDailyLimit(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	env.configure(t, 2, []TierBand{
		{Tier: TierNoWin, Weight: 100},
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := env.svc.Buy(ctx, "tenant", m.ID)
		require.NoError(t, err)
	}

	_, err := env.svc.Buy(ctx, "tenant", m.ID)
	requireStatus(t, err, errutil.StatusTooManyRequests)
}

func TestUpsertConfigValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.UpsertConfig(ctx, UpsertConfigParams{
		TenantID: "tenant", Enabled: true, MaxDailyCards: 1,
		Symbols: testSymbolConfig()[:4],
		Tiers:   []TierBand{{Tier: TierNoWin, Weight: 100}},
	})
	requireStatus(t, err, errutil.StatusBadRequest)

	_, err = env.svc.UpsertConfig(ctx, UpsertConfigParams{
		TenantID: "tenant", Enabled: true, MaxDailyCards: 1,
		Symbols: testSymbolConfig(),
		Tiers:   []TierBand{{Tier: TierJackpot, Symbol: "🦄", Weight: 100}},
	})
	requireStatus(t, err, errutil.StatusBadRequest)
}
