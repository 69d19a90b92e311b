package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// pgxQuerier is the subset of *pgxpool.Pool the repositories use.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	AccountStore
	FindByID(ctx context.Context, id int64) (*Account, error)
	Create(ctx context.Context, name, mail, passwordHash string) (int64, error)
	ExistsByMail(ctx context.Context, mail string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// PgAccountRepository implements AccountRepository using pgx.
// Mail comparison is case-insensitive, matching the unique index on lower(mail).
type PgAccountRepository struct {
	db pgxQuerier
}

func NewPgAccountRepository(db pgxQuerier) *PgAccountRepository {
	return &PgAccountRepository{db: db}
}

const accountColumns = `id, name, mail, password_hash, created_at`

func (r *PgAccountRepository) FindByMail(ctx context.Context, mail string) (*Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(mail)=lower($1)`
	acc, err := scanAccount(r.db.QueryRow(ctx, q, mail))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_BY_MAIL_FAILED").
			With("operation", "find account by mail").
			Wrap(err)
	}
	return acc, nil
}

func (r *PgAccountRepository) FindByID(ctx context.Context, id int64) (*Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	acc, err := scanAccount(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_BY_ID_FAILED").
			With("operation", "find account by id").
			With("id", id).
			Wrap(err)
	}
	return acc, nil
}

func (r *PgAccountRepository) Create(ctx context.Context, name, mail, passwordHash string) (int64, error) {
	const q = `INSERT INTO accounts (name, mail, password_hash) VALUES ($1,$2,$3) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, strings.TrimSpace(name), mail, passwordHash).Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, ErrAccountExists
		}
		return 0, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			Wrap(err)
	}
	return id, nil
}

func (r *PgAccountRepository) ExistsByMail(ctx context.Context, mail string) (bool, error) {
	const q = `SELECT 1 FROM accounts WHERE lower(mail)=lower($1) LIMIT 1`
	var one int
	if err := r.db.QueryRow(ctx, q, mail).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, oops.Code("ACCOUNT_EXISTS_FAILED").
			With("operation", "check account mail").
			Wrap(err)
	}
	return true, nil
}

func (r *PgAccountRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, oops.Code("ACCOUNT_COUNT_FAILED").Wrap(err)
	}
	return n, nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.Name, &a.Mail, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
