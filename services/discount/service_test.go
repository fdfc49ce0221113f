package discount

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"omnilypro-gaming/pkg/errutil"
	"omnilypro-gaming/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Code{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func TestGenerateCodeShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, len(codePrefix)+codeLength)
		require.True(t, strings.HasPrefix(code, codePrefix))

		for _, r := range code[len(codePrefix):] {
			require.Contains(t, codeAlphabet, string(r))
		}
	}
}

func TestIssueAndRedeem(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, "tenant", "member", 20, "wheel")
	require.NoError(t, err)
	require.Equal(t, int64(20), code.Percent)
	require.Nil(t, code.RedeemedAt)

	redeemed, err := svc.Redeem(ctx, "tenant", code.Code)
	require.NoError(t, err)
	require.NotNil(t, redeemed.RedeemedAt)
}

func TestRedeemFiresRedemptionHook(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var gotTenant, gotMember string
	var calls int
	svc.OnRedeem(func(ctx context.Context, tenantID, memberID string) {
		gotTenant, gotMember = tenantID, memberID
		calls++
	})

	code, err := svc.Issue(ctx, "tenant", "member", 15, "wheel")
	require.NoError(t, err)
	require.Zero(t, calls)

	_, err = svc.Redeem(ctx, "tenant", code.Code)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, "tenant", gotTenant)
	require.Equal(t, "member", gotMember)

	// A failed redemption must not fire the hook.
	_, err = svc.Redeem(ctx, "tenant", code.Code)
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRedeemTwiceFails(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, "tenant", "member", 10, "slot")
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, "tenant", code.Code)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, "tenant", code.Code)
	require.Error(t, err)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusConflict, be.Status())
}

func TestRedeemUnknownCode(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Redeem(context.Background(), "tenant", "SPINXXXXXX")
	require.Error(t, err)
}

func TestIssueRejectsInvalidPercent(t *testing.T) {
	svc := newTestService(t)

	for _, percent := range []int64{0, -5, 101} {
		_, err := svc.Issue(context.Background(), "tenant", "member", percent, "wheel")
		require.Error(t, err, "percent=%d", percent)
	}
}

func TestCleanupExpired(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, "tenant", "member", 15, "scratch")
	require.NoError(t, err)

	require.NoError(t, svc.codes.Update(ctx, code.ID, map[string]any{
		"expires_at": time.Now().Add(-time.Hour),
	}))

	removed, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	remaining, err := svc.List(ctx, "tenant", "member")
	require.NoError(t, err)
	require.Empty(t, remaining)
}
