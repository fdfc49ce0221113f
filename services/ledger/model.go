package ledger

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type EntryType string

const (
	EntryCredit EntryType = "CREDIT"
	EntryDebit  EntryType = "DEBIT"
)

type Balance struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	TenantID  string    `gorm:"column:tenant_id" json:"tenant_id"`
	MemberID  string    `gorm:"column:member_id" json:"member_id"`
	Balance   int64     `gorm:"column:balance" json:"balance"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

type CreditPool struct {
	ID            string     `gorm:"column:id;primaryKey" json:"id"`
	LedgerEntryID string     `gorm:"column:ledger_entry_id" json:"ledger_entry_id"`
	TenantID      string     `gorm:"column:tenant_id" json:"tenant_id"`
	MemberID      string     `gorm:"column:member_id" json:"member_id"`
	Remaining     int64      `gorm:"column:remaining" json:"remaining"`
	ConsumedAt    *time.Time `gorm:"column:consumed_at" json:"consumed_at,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
}

type Entry struct {
	ID            string         `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt     time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at" json:"updated_at"`
	TenantID      string         `gorm:"column:tenant_id" json:"tenant_id"`
	MemberID      string         `gorm:"column:member_id" json:"member_id"`
	Type          EntryType      `gorm:"column:type" json:"type"`
	Amount        int64          `gorm:"column:amount" json:"amount"`
	TransactionID string         `gorm:"column:transaction_id" json:"transaction_id"`
	ReferenceID   string         `gorm:"column:reference_id;index:idx_ledger_tenant_reference,unique" json:"reference_id"`
	Description   string         `gorm:"column:description" json:"description"`
	PreviousHash  string         `gorm:"column:previous_hash" json:"previous_hash"`
	Hash          string         `gorm:"column:hash" json:"hash"`
	Metadata      datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

type EntryParams struct {
	EntryID       string
	TenantID      string
	MemberID      string
	Type          EntryType
	Amount        int64
	ReferenceID   string
	TransactionID string
	Description   string
	PreviousHash  string
	Metadata      datatypes.JSON
}

func NewEntry(p EntryParams) *Entry {
	return &Entry{
		ID:            p.EntryID,
		TenantID:      p.TenantID,
		MemberID:      p.MemberID,
		Type:          p.Type,
		Amount:        p.Amount,
		TransactionID: p.TransactionID,
		ReferenceID:   p.ReferenceID,
		Description:   p.Description,
		PreviousHash:  p.PreviousHash,
		Metadata:      p.Metadata,
	}
}

func (m *Entry) HashFields() map[string]string {
	return map[string]string{
		"id":             m.ID,
		"tenant_id":      m.TenantID,
		"member_id":      m.MemberID,
		"type":           string(m.Type),
		"amount":         fmt.Sprintf("%d", m.Amount),
		"transaction_id": m.TransactionID,
		"reference_id":   m.ReferenceID,
		"description":    m.Description,
		"created_at":     m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash":  m.PreviousHash,
	}
}

func (m *Entry) GenerateHash() string {
	fields := m.HashFields()
	var keys []string
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(hash[:])
}

func GenerateTransactionID() (string, error) {
	datePart := time.Now().Format("20060102")

	r := make([]byte, 3) // 3 bytes = 6 hex chars
	_, err := rand.Read(r)
	if err != nil {
		return "", err
	}
	randomPart := strings.ToUpper(fmt.Sprintf("%x", r))

	return fmt.Sprintf("%s-%s", datePart, randomPart), nil
}
