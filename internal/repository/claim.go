package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Yukky887/ReminderBot/internal/model"
)

type ClaimRepository interface {
	FindByID(ctx context.Context, id string) (*model.PaymentClaim, error)
	// LockByID reads the claim with a row lock; only useful inside a transaction.
	LockByID(ctx context.Context, id string) (*model.PaymentClaim, error)
	Create(ctx context.Context, accountID string, createdAt time.Time) (*model.PaymentClaim, error)
	CountRequestedSince(ctx context.Context, accountID string, since time.Time) (int, error)
	// Resolve moves a requested claim to a terminal status. It returns nil
	// when the claim is missing or no longer requested.
	Resolve(ctx context.Context, id string, params model.ResolveClaimParams) (*model.PaymentClaim, error)
	FindRecent(ctx context.Context, limit, offset int) ([]model.ClaimWithAccount, error)
	WithTx(tx *sqlx.Tx) ClaimRepository
}

type claimRepo struct {
	db sqlxDB
}

func NewClaimRepository(db *sqlx.DB) ClaimRepository {
	return &claimRepo{db: db}
}

func (r *claimRepo) WithTx(tx *sqlx.Tx) ClaimRepository {
	return &claimRepo{db: tx}
}

func (r *claimRepo) FindByID(ctx context.Context, id string) (*model.PaymentClaim, error) {
	var claim model.PaymentClaim
	err := r.db.GetContext(ctx, &claim, `
		SELECT * FROM payment_claims WHERE id = $1
	`, id)
	return HandleNotFound(normalizeClaim(&claim), err)
}

func (r *claimRepo) LockByID(ctx context.Context, id string) (*model.PaymentClaim, error) {
	var claim model.PaymentClaim
	err := r.db.GetContext(ctx, &claim, `
		SELECT * FROM payment_claims WHERE id = $1 FOR UPDATE
	`, id)
	return HandleNotFound(normalizeClaim(&claim), err)
}

func (r *claimRepo) Create(ctx context.Context, accountID string, createdAt time.Time) (*model.PaymentClaim, error) {
	var claim model.PaymentClaim
	err := r.db.GetContext(ctx, &claim, `
		INSERT INTO payment_claims (account_id, status, created_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, accountID, model.ClaimRequested, utc(createdAt))
	if err != nil {
		return nil, err
	}
	return normalizeClaim(&claim), nil
}

func (r *claimRepo) CountRequestedSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM payment_claims
		WHERE account_id = $1 AND status = $2 AND created_at >= $3
	`, accountID, model.ClaimRequested, utc(since))
	return count, err
}

func (r *claimRepo) Resolve(ctx context.Context, id string, params model.ResolveClaimParams) (*model.PaymentClaim, error) {
	var claim model.PaymentClaim
	err := r.db.GetContext(ctx, &claim, `
		UPDATE payment_claims SET
			status = $2,
			resolved_by = $3,
			resolved_at = $4
		WHERE id = $1 AND status = $5
		RETURNING *
	`, id, params.Status, params.ResolvedBy, utc(params.ResolvedAt), model.ClaimRequested)
	return HandleNotFound(normalizeClaim(&claim), err)
}

func (r *claimRepo) FindRecent(ctx context.Context, limit, offset int) ([]model.ClaimWithAccount, error) {
	var claims []model.ClaimWithAccount
	err := r.db.SelectContext(ctx, &claims, `
		SELECT c.*, a.telegram_id, a.username
		FROM payment_claims c
		JOIN accounts a ON a.id = c.account_id
		ORDER BY c.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range claims {
		normalizeClaim(&claims[i].PaymentClaim)
	}
	return claims, nil
}

func normalizeClaim(c *model.PaymentClaim) *model.PaymentClaim {
	c.CreatedAt = utc(c.CreatedAt)
	c.ResolvedAt = utcPtr(c.ResolvedAt)
	return c
}
