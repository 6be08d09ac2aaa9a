package payment

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DryRun returns fake intents without calling any provider.  It is the
// default for local runs.
type DryRun struct {
	log zerolog.Logger
}

func NewDryRun(log zerolog.Logger) *DryRun { return &DryRun{log: log} }

func (d *DryRun) CreateIntent(_ context.Context, amountCents int64, currency string) (Intent, error) {
	if amountCents <= 0 {
		return Intent{}, ErrInvalidAmount
	}
	id := "pi_dryrun_" + uuid.New().String()[:8]
	d.log.Info().Int64("amount_cents", amountCents).Str("intent_id", id).
		Msg("payment dry run: skipping intent creation")
	return Intent{
		ID:           id,
		ClientSecret: id + "_secret_dryrun",
		Amount:       amountCents,
		Currency:     strings.ToLower(currency),
	}, nil
}
