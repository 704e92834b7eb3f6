package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
)

var (
	customerProfileColumns   = []string{"run_id", "generated_at", "account_no", "mean", "std", "count", "payload"}
	occupationProfileColumns = []string{"run_id", "generated_at", "occupation", "mean", "std", "count"}
	accountAgeProfileColumns = []string{"run_id", "generated_at", "bucket", "mean_age", "mean_amount", "std", "count"}
)

// ReplaceProfiles swaps the three profile tables for the batch in a single
// transaction, so readers see either the previous run or this one.
func (s *Store) ReplaceProfiles(ctx context.Context, batch *domain.ProfileBatch) error {
	ctx, span := tracer.Start(ctx, "Postgres.ReplaceProfiles")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", batch.RunID),
		attribute.Int("profiles.customers", len(batch.Customers)),
	)

	customers := make([][]any, 0, len(batch.Customers))
	for i := range batch.Customers {
		p := &batch.Customers[i]
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode customer profile %s: %w", p.AccountNo, err)
		}
		customers = append(customers, []any{batch.RunID, batch.GeneratedAt, p.AccountNo, p.Mean, p.Std, p.Count, payload})
	}
	occupations := make([][]any, 0, len(batch.Occupations))
	for _, o := range batch.Occupations {
		occupations = append(occupations, []any{batch.RunID, batch.GeneratedAt, o.Occupation, o.Mean, o.Std, o.Count})
	}
	ages := make([][]any, 0, len(batch.AccountAges))
	for _, a := range batch.AccountAges {
		ages = append(ages, []any{batch.RunID, batch.GeneratedAt, a.Bucket, a.MeanAge, a.MeanAmount, a.Std, a.Count})
	}

	steps := []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{s.tables.CustomerProfiles, customerProfileColumns, customers},
		{s.tables.OccupationProfiles, occupationProfileColumns, occupations},
		{s.tables.AccountAgeProfiles, accountAgeProfileColumns, ages},
	}

	err := s.call(ctx, "profiles", func() error {
		return s.withTx(ctx, func(tx pgx.Tx) error {
			for _, step := range steps {
				if _, err := tx.Exec(ctx, "DELETE FROM "+ident(step.table)); err != nil {
					return fmt.Errorf("clear %s: %w", step.table, err)
				}
				if len(step.rows) == 0 {
					continue
				}
				if _, err := tx.CopyFrom(ctx, pgx.Identifier{step.table}, step.columns, pgx.CopyFromRows(step.rows)); err != nil {
					return fmt.Errorf("copy %s: %w", step.table, err)
				}
			}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.logger.Info("postgres: profiles replaced",
		zap.String("run_id", batch.RunID),
		zap.Int("customers", len(customers)),
		zap.Int("occupations", len(occupations)),
		zap.Int("account_ages", len(ages)),
	)
	return nil
}
