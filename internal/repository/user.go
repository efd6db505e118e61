package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

// ErrUserNotFound is returned when a profile update targets an unknown user.
var ErrUserNotFound = errors.New("user not found")

const updateUserProfileSQL = `UPDATE users SET
	name = COALESCE($2, name),
	phone = COALESCE($3, phone),
	address = COALESCE($4, address),
	city = COALESCE($5, city),
	postal_code = COALESCE($6, postal_code)
	WHERE id = $1`

var _ order.ProfileUpdater = (*UserRepository)(nil)

// UserRepository updates customer profiles.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// UpdateProfile overwrites only the fields set in patch.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID int64, patch order.ProfilePatch) error {
	tag, err := r.pool.Exec(ctx, updateUserProfileSQL,
		userID, patch.Name, patch.Phone, patch.Address, patch.City, patch.PostalCode,
	)
	if err != nil {
		return fmt.Errorf("updating profile of user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
