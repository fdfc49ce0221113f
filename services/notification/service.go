package notification

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"omnilypro-gaming/pkg/db/option"
	"omnilypro-gaming/pkg/errutil"
	"omnilypro-gaming/pkg/repository"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	notifications repository.Repository[Notification]
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

		notifications: repository.ProvideStore[Notification](p.DB),
	}
}

// Notify is fire-and-forget: a failed insert is logged and never blocks
// the operation that produced it.
func (s *Service) Notify(ctx context.Context, tenantID, memberID string, kind Kind, title, message string) {
	n := &Notification{
		ID:        s.node.Generate().String(),
		TenantID:  tenantID,
		MemberID:  memberID,
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		zap.L().Error("failed to create notification",
			zap.String("tenant_id", tenantID),
			zap.String("member_id", memberID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

func (s *Service) List(ctx context.Context, tenantID, memberID string) ([]*Notification, error) {
	return s.notifications.Find(ctx, &Notification{TenantID: tenantID, MemberID: memberID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}))
}

func (s *Service) MarkRead(ctx context.Context, tenantID, notificationID string) error {
	res := s.db.WithContext(ctx).Model(&Notification{}).
		Where("tenant_id = ? AND id = ? AND read_at IS NULL", tenantID, notificationID).
		Update("read_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("notification not found or already read", nil)
	}

	return nil
}
