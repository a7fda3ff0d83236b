package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/Yukky887/ReminderBot/internal/model"
)

type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (*model.Account, error)
	FindByUsername(ctx context.Context, query string, limit int) ([]model.Account, error)
	FindAll(ctx context.Context, limit, offset int) ([]model.AccountSummary, error)
	// Upsert creates the account on first contact and refreshes the
	// username on later ones. A nil username keeps the stored one.
	Upsert(ctx context.Context, params model.UpsertAccountParams) (*model.Account, error)
	// LockByID reads the account with a row lock; only useful inside a transaction.
	LockByID(ctx context.Context, id string) (*model.Account, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) AccountRepository
}

type accountRepo struct {
	db sqlxDB
}

// sqlxDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sqlxDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) WithTx(tx *sqlx.Tx) AccountRepository {
	return &accountRepo{db: tx}
}

func (r *accountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts WHERE id = $1
	`, id)
	return HandleNotFound(normalizeAccount(&account), err)
}

func (r *accountRepo) FindByTelegramID(ctx context.Context, telegramID int64) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts WHERE telegram_id = $1
	`, telegramID)
	return HandleNotFound(normalizeAccount(&account), err)
}

func (r *accountRepo) FindByUsername(ctx context.Context, query string, limit int) ([]model.Account, error) {
	var accounts []model.Account
	err := r.db.SelectContext(ctx, &accounts, `
		SELECT * FROM accounts
		WHERE username ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		normalizeAccount(&accounts[i])
	}
	return accounts, nil
}

func (r *accountRepo) FindAll(ctx context.Context, limit, offset int) ([]model.AccountSummary, error) {
	var accounts []model.AccountSummary
	err := r.db.SelectContext(ctx, &accounts, `
		SELECT a.*, s.status AS subscription_status, s.next_payment
		FROM accounts a
		LEFT JOIN subscriptions s ON s.account_id = a.id
		ORDER BY a.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		normalizeAccount(&accounts[i].Account)
		accounts[i].NextPayment = utcPtr(accounts[i].NextPayment)
	}
	return accounts, nil
}

func (r *accountRepo) Upsert(ctx context.Context, params model.UpsertAccountParams) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		INSERT INTO accounts (telegram_id, username)
		VALUES ($1, $2)
		ON CONFLICT (telegram_id) DO UPDATE
			SET username = COALESCE(EXCLUDED.username, accounts.username)
		RETURNING *
	`, params.TelegramID, params.Username)
	if err != nil {
		return nil, err
	}
	return normalizeAccount(&account), nil
}

func (r *accountRepo) LockByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts WHERE id = $1 FOR UPDATE
	`, id)
	return HandleNotFound(normalizeAccount(&account), err)
}

func normalizeAccount(a *model.Account) *model.Account {
	a.CreatedAt = utc(a.CreatedAt)
	return a
}
