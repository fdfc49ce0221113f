package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"omnilypro-gaming/pkg/db/option"
	"omnilypro-gaming/pkg/errutil"
	"omnilypro-gaming/pkg/repository"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	ledger  repository.Repository[Entry]
	balance repository.Repository[Balance]
	credit  repository.Repository[CreditPool]
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

		ledger:  repository.ProvideStore[Entry](p.DB),
		balance: repository.ProvideStore[Balance](p.DB),
		credit:  repository.ProvideStore[CreditPool](p.DB),
	}
}

// AddEntryParams describes a single point movement. ReferenceID makes the
// movement idempotent: a second add with the same reference is a no-op
// returning the original entry.
type AddEntryParams struct {
	TenantID    string
	MemberID    string
	Type        EntryType
	Amount      int64
	ReferenceID string
	Description string
	Metadata    map[string]string
}

func (s *Service) GetBalance(ctx context.Context, tenantID, memberID string) (int64, time.Time, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	balance, err := s.balance.FindOne(ctx, &Balance{TenantID: tenantID, MemberID: memberID})
	if err != nil {
		zap.L().Error("failed to query balance", zap.Error(err))
		return 0, time.Time{}, err
	}

	if balance == nil {
		return 0, time.Time{}, nil
	}

	return balance.Balance, balance.UpdatedAt, nil
}

// Credit awards points inside its own transaction.
func (s *Service) Credit(ctx context.Context, p AddEntryParams) (*Entry, error) {
	var entry *Entry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.CreditTx(ctx, tx, p)
		return err
	})
	return entry, err
}

// CreditTx awards points within a caller-owned transaction, so game
// outcomes and challenge completions commit atomically with the entry.
func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, p AddEntryParams) (*Entry, error) {
	if p.Amount <= 0 {
		return nil, errutil.BadRequest("amount must be > 0 for CREDIT", nil)
	}

	ledgerTx := s.ledger.WithTrx(tx)

	// Idempotency guard: the unique index on (tenant_id, reference_id) is
	// the hard stop, this read keeps the happy path from racing itself.
	if exist, err := ledgerTx.FindOne(ctx, &Entry{TenantID: p.TenantID, ReferenceID: p.ReferenceID}); err != nil {
		return nil, err
	} else if exist != nil {
		zap.L().Warn("ledger reference already recorded", zap.String("reference_id", p.ReferenceID))
		return exist, nil
	}

	lastEntry, err := s.lastEntryTx(ctx, tx, p.TenantID, p.MemberID)
	if err != nil {
		return nil, err
	}

	return s.processCredit(ctx, tx, lastEntry, p)
}

// Debit spends points FIFO against the oldest unconsumed credits.
func (s *Service) Debit(ctx context.Context, p AddEntryParams) (*Entry, error) {
	var entry *Entry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		tx = tx.Scopes(option.LockingUpdate)

		lastEntry, err := s.lastEntryTx(ctx, tx, p.TenantID, p.MemberID)
		if err != nil {
			return err
		}

		entry, err = s.processDebit(ctx, tx, lastEntry, p)
		return err
	})
	return entry, err
}

func (s *Service) lastEntryTx(ctx context.Context, tx *gorm.DB, tenantID, memberID string) (*Entry, error) {
	return s.ledger.WithTrx(tx).FindOne(ctx, &Entry{
		TenantID: tenantID,
		MemberID: memberID,
	}, option.WithSortBy(
		option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow: map[string]bool{
				"created_at": true,
			},
		},
	), option.WithLockingUpdate())
}

func (s *Service) processCredit(ctx context.Context, tx *gorm.DB, lastEntry *Entry, p AddEntryParams) (*Entry, error) {
	var (
		previousHash          = "GENESIS"
		previousBalance int64 = 0
	)

	balanceTx := s.balance.WithTrx(tx)
	creditTx := s.credit.WithTrx(tx)
	ledgerTx := s.ledger.WithTrx(tx)

	balance, err := balanceTx.FindOne(ctx, &Balance{
		TenantID: p.TenantID, MemberID: p.MemberID,
	}, option.WithLockingUpdate())
	if err != nil {
		zap.L().Error("failed to query balance", zap.Error(err))
		return nil, err
	}

	transactionID, err := GenerateTransactionID()
	if err != nil {
		return nil, err
	}

	metaBytes, _ := json.Marshal(p.Metadata)
	entry := NewEntry(EntryParams{
		EntryID: s.node.Generate().String(), TenantID: p.TenantID, MemberID: p.MemberID,
		Type: EntryCredit, Amount: p.Amount, TransactionID: transactionID,
		ReferenceID: p.ReferenceID, Description: p.Description, Metadata: datatypes.JSON(metaBytes),
	})
	entry.CreatedAt = time.Now()

	if lastEntry != nil {
		previousHash = lastEntry.Hash
	}

	if balance != nil {
		previousBalance = balance.Balance
	}

	entry.PreviousHash = previousHash
	entry.Hash = entry.GenerateHash()

	if err := ledgerTx.Create(ctx, entry); err != nil {
		return nil, err
	}

	if err := creditTx.Create(ctx, &CreditPool{
		ID: s.node.Generate().String(), TenantID: p.TenantID, MemberID: p.MemberID,
		LedgerEntryID: entry.ID, Remaining: p.Amount, CreatedAt: time.Now(),
	}); err != nil {
		return nil, err
	}

	if balance == nil {
		if err := balanceTx.Create(ctx, &Balance{
			ID: s.node.Generate().String(), TenantID: p.TenantID, MemberID: p.MemberID,
			Balance: previousBalance + entry.Amount, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}); err != nil {
			return nil, err
		}
	} else {
		if err := balanceTx.Update(ctx, balance.ID, map[string]any{
			"balance":    gorm.Expr("balance + ?", entry.Amount),
			"updated_at": time.Now(),
		}); err != nil {
			return nil, err
		}
	}

	return entry, nil
}

func (s *Service) processDebit(ctx context.Context, tx *gorm.DB, lastEntry *Entry, p AddEntryParams) (*Entry, error) {
	if p.Amount <= 0 {
		return nil, errutil.BadRequest("amount must be > 0 for DEBIT", nil)
	}

	creditTx := s.credit.WithTrx(tx)
	balanceTx := s.balance.WithTrx(tx)
	ledgerTx := s.ledger.WithTrx(tx)

	pools, err := creditTx.Find(ctx, &CreditPool{
		TenantID: p.TenantID,
		MemberID: p.MemberID,
	},
		option.ApplyOperator(option.Condition{
			Field:    "remaining",
			Operator: option.GT,
			Value:    0,
		}),
		option.WithSortBy(
			option.QuerySortBy{
				SortBy:  "created_at",
				OrderBy: "asc",
				Allow: map[string]bool{
					"created_at": true,
				},
			},
		),
	)
	if err != nil {
		return nil, err
	}

	var totalAvailable int64
	for _, pool := range pools {
		totalAvailable += pool.Remaining
	}
	if totalAvailable < p.Amount {
		return nil, errutil.UnprocessableEntity(
			fmt.Sprintf("insufficient points: need=%d available=%d", p.Amount, totalAvailable), nil)
	}

	balance, err := balanceTx.FindOne(ctx, &Balance{
		TenantID: p.TenantID, MemberID: p.MemberID,
	})
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.Balance < p.Amount {
		return nil, errutil.UnprocessableEntity("insufficient points", nil)
	}

	transactionID, err := GenerateTransactionID()
	if err != nil {
		zap.L().Error("failed to generate transactionId", zap.Error(err))
		return nil, err
	}

	remaining := p.Amount
	allocations := make([]RedeemAllocation, 0, len(pools))
	for _, pool := range pools {
		if remaining == 0 {
			break
		}

		allocatable := min(pool.Remaining, remaining)
		allocations = append(allocations, RedeemAllocation{
			CreditPoolID:    pool.ID,
			SourceID:        pool.LedgerEntryID,
			Amount:          allocatable,
			RemainingAmount: pool.Remaining - allocatable,
		})

		remaining -= allocatable
	}

	meta := make(map[string]any, len(p.Metadata)+1)
	for k, v := range p.Metadata {
		meta[k] = v
	}

	sources := make([]DebitSource, 0, len(allocations))
	for _, a := range allocations {
		sources = append(sources, DebitSource{LedgerEntryID: a.SourceID, Amount: a.Amount})
	}
	meta["sources"] = sources

	metaBytes, _ := json.Marshal(meta)
	entry := NewEntry(EntryParams{
		EntryID:       s.node.Generate().String(),
		Type:          EntryDebit,
		TenantID:      p.TenantID,
		MemberID:      p.MemberID,
		Amount:        p.Amount,
		TransactionID: transactionID,
		ReferenceID:   p.ReferenceID,
		Description:   p.Description,
		Metadata:      datatypes.JSON(metaBytes),
	})
	entry.CreatedAt = time.Now()
	if lastEntry != nil {
		entry.PreviousHash = lastEntry.Hash
	}
	entry.Hash = entry.GenerateHash()

	if err := ledgerTx.Create(ctx, entry); err != nil {
		return nil, err
	}

	for _, alloc := range allocations {
		updates := map[string]any{
			"remaining":   gorm.Expr("remaining - ?", alloc.Amount),
			"consumed_at": time.Now(),
		}

		if err := creditTx.Update(ctx, alloc.CreditPoolID, updates); err != nil {
			zap.L().Error("failed to update credit pools", zap.Error(err))
			return nil, err
		}
	}

	if err := balanceTx.Update(ctx, balance.ID, map[string]any{
		"balance":    gorm.Expr("balance - ?", p.Amount),
		"updated_at": time.Now(),
	}); err != nil {
		return nil, err
	}

	return entry, nil
}

func (s *Service) ListEntries(ctx context.Context, tenantID, memberID string) ([]*Entry, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	entries, err := s.ledger.Find(ctx, &Entry{
		TenantID: tenantID,
		MemberID: memberID,
	}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "asc",
		Allow:   map[string]bool{"created_at": true},
	}))
	if err != nil {
		zap.L().Error("failed to query list entries", zap.Error(err))
		return nil, err
	}

	return entries, nil
}

func (s *Service) GetEntry(ctx context.Context, entryID string) (*Entry, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	entry, err := s.ledger.FindOne(ctx, &Entry{ID: entryID})
	if err != nil {
		zap.L().Error("failed to FindOne entry", zap.Error(err))
		return nil, err
	}

	if entry == nil {
		return nil, errutil.NotFound("ledger entry not found", nil)
	}

	return entry, nil
}

// VerifyChain walks a member's entries in order and re-checks every hash
// link.
func (s *Service) VerifyChain(ctx context.Context, tenantID, memberID string) (bool, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	entries, err := s.ListEntries(ctx, tenantID, memberID)
	if err != nil {
		return false, err
	}

	lastHash := "GENESIS"
	for _, entry := range entries {
		expectedHash := entry.GenerateHash()
		if entry.Hash != expectedHash || entry.PreviousHash != lastHash {
			return false, nil
		}
		lastHash = entry.Hash
	}

	return true, nil
}
