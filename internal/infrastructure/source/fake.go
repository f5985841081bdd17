package source

import (
	"context"
	"fmt"
	"time"

	"valutatrade-hub/internal/application"
	"valutatrade-hub/internal/domain"

	"github.com/shopspring/decimal"
)

// Fake returns a fixed rate for every pair; useful for dev without network
// access.
type Fake struct {
	Rate decimal.Decimal
	Err  error
}

var _ application.RateSource = (*Fake)(nil)

func NewFake(rate decimal.Decimal) *Fake { return &Fake{Rate: rate} }

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Fetch(_ context.Context, pair domain.Pair) (domain.Quote, error) {
	if f.Err != nil {
		return domain.Quote{}, fmt.Errorf("%w: fake: %v", domain.ErrSourceUnavailable, f.Err)
	}
	return domain.Quote{
		Pair:       pair,
		Rate:       f.Rate,
		ObservedAt: time.Now().UTC(),
		Source:     "fake",
	}, nil
}
