package supabase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
)

// --- Behaviour profiles (implements port.ProfileSink) ---

type runColumns struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
}

type customerProfileRow struct {
	runColumns
	domain.CustomerProfile
}

type occupationProfileRow struct {
	runColumns
	domain.OccupationSummary
}

type accountAgeProfileRow struct {
	runColumns
	domain.AccountAgeSummary
}

// ReplaceProfiles writes the batch tagged with its run id, then removes every
// row from earlier runs. Readers never see an empty table; a failure before
// the cleanup leaves the previous run in place next to a partial new one.
func (c *Client) ReplaceProfiles(ctx context.Context, batch *domain.ProfileBatch) error {
	ctx, span := tracer.Start(ctx, "Supabase.ReplaceProfiles")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", batch.RunID),
		attribute.Int("profiles.customers", len(batch.Customers)),
	)

	run := runColumns{RunID: batch.RunID, GeneratedAt: batch.GeneratedAt}

	customers := make([]customerProfileRow, len(batch.Customers))
	for i := range batch.Customers {
		customers[i] = customerProfileRow{run, batch.Customers[i]}
	}
	occupations := make([]occupationProfileRow, len(batch.Occupations))
	for i := range batch.Occupations {
		occupations[i] = occupationProfileRow{run, batch.Occupations[i]}
	}
	ages := make([]accountAgeProfileRow, len(batch.AccountAges))
	for i := range batch.AccountAges {
		ages[i] = accountAgeProfileRow{run, batch.AccountAges[i]}
	}

	steps := []struct {
		table string
		rows  func(lo, hi int) any
		n     int
	}{
		{c.tables.CustomerProfiles, func(lo, hi int) any { return customers[lo:hi] }, len(customers)},
		{c.tables.OccupationProfiles, func(lo, hi int) any { return occupations[lo:hi] }, len(occupations)},
		{c.tables.AccountAgeProfiles, func(lo, hi int) any { return ages[lo:hi] }, len(ages)},
	}

	for _, step := range steps {
		for _, r := range chunks(step.n, c.pageSize) {
			err := c.call(ctx, "profiles", func() error {
				return c.doPost(ctx, step.table, step.rows(r[0], r[1]))
			})
			if err != nil {
				span.RecordError(err)
				return err
			}
		}
	}

	for _, step := range steps {
		path := fmt.Sprintf("%s?run_id=neq.%s", step.table, url.QueryEscape(batch.RunID))
		err := c.call(ctx, "profiles", func() error {
			return c.doDelete(ctx, path)
		})
		if err != nil {
			span.RecordError(err)
			return err
		}
	}

	c.logger.Info("supabase: profiles replaced",
		zap.String("run_id", batch.RunID),
		zap.Int("customers", len(customers)),
		zap.Int("occupations", len(occupations)),
		zap.Int("account_ages", len(ages)),
	)
	return nil
}
