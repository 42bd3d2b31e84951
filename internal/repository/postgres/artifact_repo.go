package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"labtable/internal/domain"
	"labtable/internal/port"
)

type artifactRepo struct {
	db *sqlx.DB
}

// NewArtifactRepo creates a new PostgreSQL-backed ArtifactRepository.
func NewArtifactRepo(db *sqlx.DB) port.ArtifactRepository {
	return &artifactRepo{db: db}
}

func (r *artifactRepo) Create(ctx context.Context, a *domain.Artifact) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, account_id, exp_id, payload, image_key, plot_key, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.AccountID, a.ExpID, a.Payload, a.ImageKey, a.PlotKey, a.CreatedAt, a.ExpiresAt)
	if err != nil {
		return fmt.Errorf("artifactRepo.Create: %w", err)
	}
	return nil
}

func (r *artifactRepo) GetByID(ctx context.Context, accountID string, id uuid.UUID) (*domain.Artifact, error) {
	var a domain.Artifact
	err := r.db.GetContext(ctx, &a,
		"SELECT * FROM artifacts WHERE id = $1 AND account_id = $2", id, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("artifactRepo.GetByID: %w", err)
	}
	return &a, nil
}

func (r *artifactRepo) ListActiveByAccount(ctx context.Context, accountID string, now time.Time, limit int) ([]domain.ArtifactSummary, error) {
	var out []domain.ArtifactSummary
	err := r.db.SelectContext(ctx, &out,
		`SELECT id, exp_id, created_at, expires_at,
			image_key <> '' AS has_image,
			plot_key IS NOT NULL AS has_plot
		 FROM artifacts
		 WHERE account_id = $1 AND expires_at > $2
		 ORDER BY created_at DESC
		 LIMIT $3`, accountID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("artifactRepo.ListActiveByAccount: %w", err)
	}
	return out, nil
}

func (r *artifactRepo) AttachPlot(ctx context.Context, accountID string, id uuid.UUID, plotKey string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE artifacts SET plot_key = $1
		 WHERE id = $2 AND account_id = $3 AND plot_key IS NULL`, plotKey, id, accountID)
	if err != nil {
		return fmt.Errorf("artifactRepo.AttachPlot: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	var attached bool
	err = r.db.GetContext(ctx, &attached,
		"SELECT plot_key IS NOT NULL FROM artifacts WHERE id = $1 AND account_id = $2", id, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrArtifactNotFound
		}
		return fmt.Errorf("artifactRepo.AttachPlot lookup: %w", err)
	}
	return domain.ErrPlotAlreadyAttached
}

func (r *artifactRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Artifact, error) {
	var out []domain.Artifact
	err := r.db.SelectContext(ctx, &out,
		"SELECT * FROM artifacts WHERE expires_at <= $1 ORDER BY expires_at LIMIT $2", now, limit)
	if err != nil {
		return nil, fmt.Errorf("artifactRepo.ListExpired: %w", err)
	}
	return out, nil
}

func (r *artifactRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM artifacts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("artifactRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrArtifactNotFound
	}
	return nil
}

func (r *artifactRepo) CountCreatedByAccount(ctx context.Context, since, until time.Time) (map[string]int64, error) {
	var rows []struct {
		AccountID string `db:"account_id"`
		Count     int64  `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT account_id, COUNT(*) AS count FROM artifacts
		 WHERE created_at >= $1 AND created_at < $2
		 GROUP BY account_id`, since, until)
	if err != nil {
		return nil, fmt.Errorf("artifactRepo.CountCreatedByAccount: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.AccountID] = row.Count
	}
	return out, nil
}
