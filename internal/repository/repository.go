package repository

import (
	"fmt"

	"github.com/yourusername/shin/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Odds        OddsRepository
	Probability ProbabilityRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Odds:        NewPostgresOddsRepository(db),
		Probability: NewPostgresProbabilityRepository(db),
	}, nil
}
