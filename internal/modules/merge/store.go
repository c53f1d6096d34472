// README: Requester lookup backed by the users table.
package merge

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetops/internal/types"
)

var ErrRequesterUnknown = errors.New("requester not found")

// PGDirectory resolves requester ids against the users table. Requesters are
// plain users; drivers live in their own table but share the id space.
type PGDirectory struct {
	db *pgxpool.Pool
}

func NewPGDirectory(db *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{db: db}
}

func (d *PGDirectory) RequesterEmail(ctx context.Context, id types.ID) (string, error) {
	row := d.db.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, string(id))
	var email string
	if err := row.Scan(&email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrRequesterUnknown
		}
		return "", err
	}
	return email, nil
}
