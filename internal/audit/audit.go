// README: Append-only audit trail for significant transitions.
package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fleetops/internal/types"
)

// Entry is one structured audit record. The core only ever appends; the
// reporting UI is the sole reader.
type Entry struct {
	Actor     string    `json:"actor"`
	Section   string    `json:"section"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	TargetID  *types.ID `json:"target_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder is what services depend on; failures to record are the caller's
// to ignore, an audit miss must never block a transition.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var target *string
	if e.TargetID != nil {
		v := string(*e.TargetID)
		target = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_log (actor, section, action, detail, target_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Actor, e.Section, e.Action, e.Detail, target, e.CreatedAt,
	)
	return err
}

// List returns the newest entries first, for the audit viewer.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT actor, section, action, detail, target_id, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var target *string
		if err := rows.Scan(&e.Actor, &e.Section, &e.Action, &e.Detail, &target, &e.CreatedAt); err != nil {
			return nil, err
		}
		if target != nil {
			id := types.ID(*target)
			e.TargetID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
