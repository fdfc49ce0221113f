package discount

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"omnilypro-gaming/pkg/errutil"
	"omnilypro-gaming/pkg/repository"
)

const (
	codePrefix   = "SPIN"
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6

	defaultValidity = 30 * 24 * time.Hour
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	codes repository.Repository[Code]

	onRedeem func(ctx context.Context, tenantID, memberID string)
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		codes: repository.ProvideStore[Code](p.DB),
	}
}

// GenerateCode builds a SPIN-prefixed random alphanumeric code.
func GenerateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}

	return codePrefix + string(buf), nil
}

// IssueTx creates a discount code within a caller-owned transaction.
// Unique-code collisions are retried a few times before giving up.
func (s *Service) IssueTx(ctx context.Context, tx *gorm.DB, tenantID, memberID string, percent int64, source string) (*Code, error) {
	if percent <= 0 || percent > 100 {
		return nil, errutil.BadRequest("discount percent must be in (0, 100]", nil)
	}

	codesTx := s.codes.WithTrx(tx)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		value, err := GenerateCode()
		if err != nil {
			return nil, err
		}

		code := &Code{
			ID:        s.node.Generate().String(),
			TenantID:  tenantID,
			MemberID:  memberID,
			Code:      value,
			Percent:   percent,
			Source:    source,
			ExpiresAt: time.Now().Add(defaultValidity),
			CreatedAt: time.Now(),
		}

		if err := codesTx.Create(ctx, code); err != nil {
			lastErr = err
			zap.L().Warn("discount code collision, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		return code, nil
	}

	return nil, errutil.Internal("failed to generate a unique discount code", lastErr)
}

func (s *Service) Issue(ctx context.Context, tenantID, memberID string, percent int64, source string) (*Code, error) {
	var code *Code
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		code, err = s.IssueTx(ctx, tx, tenantID, memberID, percent, source)
		return err
	})
	return code, err
}

// OnRedeem registers a callback fired after every successful redemption,
// feeding the redemption statistic without a package cycle back into the
// activity pipeline.
func (s *Service) OnRedeem(fn func(ctx context.Context, tenantID, memberID string)) {
	s.onRedeem = fn
}

// Redeem marks a code as used with a single conditional update, so two
// concurrent redemptions cannot both succeed.
func (s *Service) Redeem(ctx context.Context, tenantID, value string) (*Code, error) {
	res := s.db.WithContext(ctx).Model(&Code{}).
		Where("tenant_id = ? AND code = ? AND redeemed_at IS NULL AND expires_at > ?", tenantID, value, time.Now()).
		Update("redeemed_at", time.Now())
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errutil.Conflict("discount code already redeemed, expired, or unknown", nil)
	}

	code, err := s.codes.FindOne(ctx, &Code{TenantID: tenantID, Code: value})
	if err != nil {
		return nil, err
	}

	if s.onRedeem != nil {
		s.onRedeem(ctx, code.TenantID, code.MemberID)
	}

	return code, nil
}

func (s *Service) List(ctx context.Context, tenantID, memberID string) ([]*Code, error) {
	return s.codes.Find(ctx, &Code{TenantID: tenantID, MemberID: memberID})
}

// CleanupExpired removes stale unredeemed codes, run from the background
// worker.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("redeemed_at IS NULL AND expires_at < ?", time.Now()).
		Delete(&Code{})
	if res.Error != nil {
		return 0, res.Error
	}

	return res.RowsAffected, nil
}
