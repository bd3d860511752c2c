package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/shin/internal/database"
	"github.com/yourusername/shin/internal/models"
)

// PostgresOddsRepository implements OddsRepository for PostgreSQL
type PostgresOddsRepository struct {
	db *database.DB
}

// NewPostgresOddsRepository creates a new odds repository
func NewPostgresOddsRepository(db *database.DB) OddsRepository {
	return &PostgresOddsRepository{db: db}
}

// GetLatestForRace retrieves the most recent snapshot of every runner in a race
func (o *PostgresOddsRepository) GetLatestForRace(ctx context.Context, raceID uuid.UUID) ([]*models.OddsSnapshot, error) {
	query := `
		SELECT DISTINCT ON (runner_id)
			time, race_id, runner_id, back_price, back_size, lay_price, lay_size, ltp, total_volume
		FROM odds_snapshots
		WHERE race_id = $1
		ORDER BY runner_id, time DESC
	`

	rows, err := o.db.GetPool().Query(ctx, query, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest odds for race: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.OddsSnapshot
	for rows.Next() {
		snapshot := &models.OddsSnapshot{}
		err := rows.Scan(
			&snapshot.Time, &snapshot.RaceID, &snapshot.RunnerID, &snapshot.BackPrice, &snapshot.BackSize,
			&snapshot.LayPrice, &snapshot.LaySize, &snapshot.LTP, &snapshot.TotalVolume,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan odds: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate odds: %w", err)
	}

	if len(snapshots) == 0 {
		return nil, models.ErrNotFound
	}
	return snapshots, nil
}

// GetRacesWithRecentOdds lists races with at least one snapshot since the given time
func (o *PostgresOddsRepository) GetRacesWithRecentOdds(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT race_id
		FROM odds_snapshots
		WHERE time >= $1
		ORDER BY race_id
	`

	rows, err := o.db.GetPool().Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query races with recent odds: %w", err)
	}
	defer rows.Close()

	var raceIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan race id: %w", err)
		}
		raceIDs = append(raceIDs, id)
	}

	return raceIDs, rows.Err()
}
