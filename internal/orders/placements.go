package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"aisle/internal/domain"
)

// PlacementRepository is the task result store for background placements.
type PlacementRepository struct {
	db *sql.DB
}

func NewPlacementRepository(db *sql.DB) *PlacementRepository {
	return &PlacementRepository{db: db}
}

func (r *PlacementRepository) Create(ctx context.Context, items []string) (*domain.Placement, error) {
	now := time.Now().UTC()
	placement := &domain.Placement{
		ID:        uuid.New().String(),
		Items:     items,
		Status:    domain.PlacementPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO placements (id, items, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, placement.ID, pq.Array(placement.Items), placement.Status, now)
	if err != nil {
		return nil, err
	}

	return placement, nil
}

// SetStatus records a state transition. The reason is only stored for
// failed placements.
func (r *PlacementRepository) SetStatus(ctx context.Context, id string, status domain.PlacementStatus, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE placements
		SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1
	`, id, status, reason)
	return err
}

func (r *PlacementRepository) GetByID(ctx context.Context, id string) (*domain.Placement, error) {
	placement := &domain.Placement{}
	var errMsg sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, items, status, error, created_at, updated_at
		FROM placements
		WHERE id = $1
	`, id).Scan(&placement.ID, pq.Array(&placement.Items), &placement.Status,
		&errMsg, &placement.CreatedAt, &placement.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	placement.Error = errMsg.String
	return placement, nil
}
