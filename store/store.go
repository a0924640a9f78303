// Package store persists transactions and user accounts and exposes a
// row-change feed for the transactions table.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/phillip/levy-collector-go/models"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate record")
)

// ChangeType mirrors the row events of the hosted change feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
)

type ChangeEvent struct {
	Type   ChangeType         `json:"type"`
	Record models.Transaction `json:"record"`
}

// Filter narrows a transaction listing. Zero values mean "no constraint".
type Filter struct {
	From           time.Time // inclusive
	To             time.Time // exclusive
	Collector      string    // case-insensitive substring
	CollectorExact string
	PaymentType    models.PaymentType
	Search         string // payer name, collector or payment type substring
	Limit          int
}

// Match reports whether t satisfies every constraint in f. Limit is ignored.
func (f Filter) Match(t models.Transaction) bool {
	if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.CreatedAt.Before(f.To) {
		return false
	}
	if f.Collector != "" && !containsFold(t.Collector, f.Collector) {
		return false
	}
	if f.CollectorExact != "" && !strings.EqualFold(t.Collector, f.CollectorExact) {
		return false
	}
	if f.PaymentType != "" && t.PaymentType != f.PaymentType {
		return false
	}
	if f.Search != "" &&
		!containsFold(t.PayerName, f.Search) &&
		!containsFold(t.Collector, f.Search) &&
		!containsFold(string(t.PaymentType), f.Search) {
		return false
	}
	return true
}

// containsFold matches with Unicode case folding. A Caser holds state, so
// each call gets its own.
func containsFold(s, sub string) bool {
	fold := cases.Fold()
	return strings.Contains(fold.String(s), fold.String(sub))
}

// Transactions is the transactions table. Records are append-only.
type Transactions interface {
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	// ListTransactions returns matches newest first.
	ListTransactions(ctx context.Context, f Filter) ([]models.Transaction, error)
	// Watch streams row changes until ctx is done. The channel is closed on return.
	Watch(ctx context.Context) (<-chan ChangeEvent, error)
}

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	// ListUsers returns every account ordered by email.
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Store bundles both tables of a single backend.
type Store interface {
	Transactions
	Users
	Close(ctx context.Context) error
}
