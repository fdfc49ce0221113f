package activity

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"omnilypro-gaming/services/badge"
	"omnilypro-gaming/services/challenge"
	"omnilypro-gaming/services/discount"
	"omnilypro-gaming/services/ledger"
	"omnilypro-gaming/services/member"
	"omnilypro-gaming/services/notification"
	"omnilypro-gaming/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type testEnv struct {
	svc        *Service
	members    *member.Service
	challenges *challenge.Service
	discounts  *discount.Service
	db         *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t,
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

	svc := NewService(ServiceParams{
		DB: db, Members: members, Challenges: challenges,
		Asynq: asynq.NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:1"}),
	})

	registerRedemptionHook(svc, discounts)

	return &testEnv{svc: svc, members: members, challenges: challenges, discounts: discounts, db: db}
}

func (e *testEnv) registerMember(t *testing.T) *member.Member {
	t.Helper()

	m, err := e.members.Register(context.Background(), member.RegisterParams{
		TenantID: "tenant", ExternalID: "ext-1", Email: "mario@example.com", Name: "Mario",
	})
	require.NoError(t, err)
	return m
}

func TestRecordPurchaseUpdatesCounters(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	ctx := context.Background()

	require.NoError(t, env.svc.Record(ctx, "tenant", m.ID, KindPurchase, 2500))

	got, err := env.members.Get(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.PurchaseCount)
	require.Equal(t, int64(2500), got.TotalSpentCents)
	require.Equal(t, int64(1), got.StreakDays)
}

func TestRecordUnknownKindRejected(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)

	err := env.svc.Record(context.Background(), "tenant", m.ID, Kind("teleport"), 1)
	require.Error(t, err)
}

func TestRedemptionFeedsCountersAndChallenges(t *testing.T) {
	env := newTestEnv(t)
	m := env.registerMember(t)
	ctx := context.Background()

	_, err := env.challenges.CreateTemplate(ctx, challenge.CreateTemplateParams{
		TenantID: "tenant", Name: "Riscatta 2 Premi",
		Period: challenge.PeriodDaily, Requirement: challenge.RequirementRedeems, Target: 2,
	})
	require.NoError(t, err)

	_, err = env.challenges.Generate(ctx, "tenant", m.ID, challenge.PeriodDaily)
	require.NoError(t, err)

	code, err := env.discounts.Issue(ctx, "tenant", m.ID, 10, "wheel")
	require.NoError(t, err)

	_, err = env.discounts.Redeem(ctx, "tenant", code.Code)
	require.NoError(t, err)

	got, err := env.members.Get(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.RewardsRedeemed)

	instances, err := env.challenges.List(ctx, "tenant", m.ID)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	require.Equal(t, int64(1), instances[0].Current)
	require.Equal(t, int64(50), instances[0].Percentage)
}
