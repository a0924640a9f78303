package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/phillip/levy-collector-go/models"
)

const changesChannel = "transactions_changes"

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id           TEXT PRIMARY KEY,
	payer_name   TEXT          NOT NULL,
	payer_phone  TEXT          NOT NULL,
	amount       NUMERIC       NOT NULL,
	payment_type TEXT          NOT NULL,
	description  TEXT          NOT NULL DEFAULT '',
	collector    TEXT          NOT NULL,
	created_at   TIMESTAMPTZ   NOT NULL DEFAULT now()
);
-- tables created with a fixed precision are widened in place
DO $$
BEGIN
	IF EXISTS (SELECT 1 FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = 'transactions'
		AND column_name = 'amount'
		AND numeric_precision IS NOT NULL) THEN
		ALTER TABLE transactions ALTER COLUMN amount TYPE NUMERIC;
	END IF;
END
$$;
CREATE INDEX IF NOT EXISTS transactions_created_at_idx ON transactions (created_at DESC);
CREATE INDEX IF NOT EXISTS transactions_payer_idx ON transactions (payer_name, payer_phone);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT        NOT NULL,
	email         TEXT        NOT NULL UNIQUE,
	password_hash TEXT        NOT NULL,
	role          TEXT        NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE OR REPLACE FUNCTION notify_transactions_change() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('transactions_changes', json_build_object('op', TG_OP, 'id', NEW.id)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS transactions_notify ON transactions;
CREATE TRIGGER transactions_notify
	AFTER INSERT OR UPDATE ON transactions
	FOR EACH ROW EXECUTE FUNCTION notify_transactions_change();
`

const transactionColumns = `id, payer_name, payer_phone, amount::text, payment_type, description, collector, created_at`

type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates the tables and the notify trigger if they are missing.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.CreatedAt = t.CreatedAt.Truncate(time.Microsecond)

	_, err := p.pool.Exec(ctx,
		`INSERT INTO transactions (id, payer_name, payer_phone, amount, payment_type, description, collector, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)`,
		t.ID,
		t.PayerName,
		t.PayerPhone,
		t.Amount.String(),
		string(t.PaymentType),
		t.Description,
		t.Collector,
		t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (p *Postgres) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

func (p *Postgres) ListTransactions(ctx context.Context, f Filter) ([]models.Transaction, error) {
	where, args := sqlFilter(f)
	query := `SELECT ` + transactionColumns + ` FROM transactions` + where + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func sqlFilter(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	if f.Collector != "" {
		add("collector ILIKE $%d", likePattern(f.Collector))
	}
	if f.CollectorExact != "" {
		add("lower(collector) = lower($%d)", f.CollectorExact)
	}
	if f.PaymentType != "" {
		add("payment_type = $%d", string(f.PaymentType))
	}
	if f.Search != "" {
		args = append(args, likePattern(f.Search))
		n := len(args)
		conds = append(conds, fmt.Sprintf("(payer_name ILIKE $%d OR collector ILIKE $%d OR payment_type ILIKE $%d)", n, n, n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(s)) + "%"
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var (
		t      models.Transaction
		amount string
		ptype  string
	)
	if err := row.Scan(&t.ID, &t.PayerName, &t.PayerPhone, &amount, &ptype, &t.Description, &t.Collector, &t.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	t.Amount = d
	t.PaymentType = models.PaymentType(ptype)
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

type notifyPayload struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

// Watch holds one pooled connection in LISTEN mode and resolves every
// notification to its row.
func (p *Postgres) Watch(ctx context.Context) (<-chan ChangeEvent, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+changesChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", changesChannel, err)
	}

	// The session keeps LISTEN state, so it never goes back to the pool.
	listener := conn.Hijack()

	out := make(chan ChangeEvent)
	go func() {
		defer close(out)
		defer listener.Close(context.Background())

		for {
			n, err := listener.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("postgres listen stopped", "err", err)
				}
				return
			}

			var payload notifyPayload
			if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
				slog.Warn("bad change payload", "payload", n.Payload, "err", err)
				continue
			}
			t, err := p.GetTransaction(ctx, payload.ID)
			if err != nil {
				slog.Warn("change row lookup failed", "id", payload.ID, "err", err)
				continue
			}

			ev := ChangeEvent{Type: ChangeType(payload.Op), Record: *t}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return p.findUser(ctx, `email = $1`, strings.ToLower(strings.TrimSpace(email)))
}

func (p *Postgres) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return p.findUser(ctx, `id = $1`, id)
}

func (p *Postgres) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, email, password_hash, role, created_at FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		var (
			u    models.User
			role string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = models.Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *Postgres) findUser(ctx context.Context, cond string, arg any) (*models.User, error) {
	var (
		u    models.User
		role string
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, role, created_at FROM users WHERE `+cond, arg,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
