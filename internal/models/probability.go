package models

import (
	"time"

	"github.com/google/uuid"
)

// ImpliedProbability is a de-margined probability for one runner, together
// with the market-level solve that produced it
type ImpliedProbability struct {
	ID          uuid.UUID `db:"id" json:"id" validate:"required"`
	RaceID      uuid.UUID `db:"race_id" json:"race_id" validate:"required"`
	RunnerID    uuid.UUID `db:"runner_id" json:"runner_id" validate:"required"`
	Price       float64   `db:"price" json:"price" validate:"gte=1"`
	Probability float64   `db:"probability" json:"probability" validate:"gte=0,lte=1"`
	Z           float64   `db:"z" json:"z"`
	Delta       float64   `db:"delta" json:"delta"`
	Iterations  int       `db:"iterations" json:"iterations" validate:"gte=0"`
	Overround   float64   `db:"overround" json:"overround"`
	OddsTime    time.Time `db:"odds_time" json:"odds_time" validate:"required"`
	ComputedAt  time.Time `db:"computed_at" json:"computed_at" validate:"required"`
}

// Edge returns probability minus the naive implied probability of the
// price. Positive values mean the price is better than fair.
func (p *ImpliedProbability) Edge() float64 {
	if p.Price <= 0 {
		return 0
	}
	return p.Probability - 1.0/p.Price
}
