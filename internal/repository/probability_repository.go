package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/shin/internal/database"
	"github.com/yourusername/shin/internal/models"
)

var probabilityColumns = []string{
	"id", "race_id", "runner_id", "price", "probability",
	"z", "delta", "iterations", "overround", "odds_time", "computed_at",
}

// PostgresProbabilityRepository implements ProbabilityRepository for PostgreSQL
type PostgresProbabilityRepository struct {
	db *database.DB
}

// NewPostgresProbabilityRepository creates a new probability repository
func NewPostgresProbabilityRepository(db *database.DB) ProbabilityRepository {
	return &PostgresProbabilityRepository{db: db}
}

// InsertBatch stores probabilities using COPY inside a transaction so a
// race's solve is either fully stored or not at all
func (p *PostgresProbabilityRepository) InsertBatch(ctx context.Context, probabilities []*models.ImpliedProbability) error {
	if len(probabilities) == 0 {
		return nil
	}

	return p.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		count, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"shin_implied_probabilities"},
			probabilityColumns,
			pgx.CopyFromRows(probabilityRows(probabilities)),
		)
		if err != nil {
			return fmt.Errorf("failed to batch insert implied probabilities: %w", err)
		}

		if count != int64(len(probabilities)) {
			return fmt.Errorf("inserted %d rows, expected %d", count, len(probabilities))
		}
		return nil
	})
}

// GetLatestForRace returns the probabilities from the most recent solve of a race
func (p *PostgresProbabilityRepository) GetLatestForRace(ctx context.Context, raceID uuid.UUID) ([]*models.ImpliedProbability, error) {
	query := `
		SELECT id, race_id, runner_id, price, probability, z, delta, iterations, overround, odds_time, computed_at
		FROM shin_implied_probabilities
		WHERE race_id = $1
		  AND computed_at = (SELECT MAX(computed_at) FROM shin_implied_probabilities WHERE race_id = $1)
		ORDER BY runner_id
	`

	rows, err := p.db.GetPool().Query(ctx, query, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query implied probabilities: %w", err)
	}
	defer rows.Close()

	var result []*models.ImpliedProbability
	for rows.Next() {
		ip := &models.ImpliedProbability{}
		err := rows.Scan(
			&ip.ID, &ip.RaceID, &ip.RunnerID, &ip.Price, &ip.Probability,
			&ip.Z, &ip.Delta, &ip.Iterations, &ip.Overround, &ip.OddsTime, &ip.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan implied probability: %w", err)
		}
		result = append(result, ip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate implied probabilities: %w", err)
	}

	if len(result) == 0 {
		return nil, models.ErrNotFound
	}
	return result, nil
}

func probabilityRows(probabilities []*models.ImpliedProbability) [][]interface{} {
	rows := make([][]interface{}, len(probabilities))
	for i, ip := range probabilities {
		rows[i] = []interface{}{
			ip.ID, ip.RaceID, ip.RunnerID, ip.Price, ip.Probability,
			ip.Z, ip.Delta, ip.Iterations, ip.Overround, ip.OddsTime, ip.ComputedAt,
		}
	}
	return rows
}
