package postgres

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
)

func (s *Store) FetchSanctions(ctx context.Context) ([]domain.ScreenedName, error) {
	return s.fetchNames(ctx, "sanctions", s.tables.Sanctions)
}

func (s *Store) FetchWatchlist(ctx context.Context) ([]domain.ScreenedName, error) {
	return s.fetchNames(ctx, "watchlist", s.tables.Watchlist)
}

func (s *Store) FetchPEP(ctx context.Context) ([]domain.ScreenedName, error) {
	return s.fetchNames(ctx, "pep", s.tables.PEP)
}

func (s *Store) fetchNames(ctx context.Context, service, table string) ([]domain.ScreenedName, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FetchScreeningList")
	defer span.End()
	span.SetAttributes(attribute.String("table", table))

	query := fmt.Sprintf("SELECT coalesce(first_name, ''), coalesce(last_name, '') FROM %s", ident(table))

	names := []domain.ScreenedName{}
	err := s.call(ctx, service, func() error {
		names = names[:0]
		rows, err := s.db.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var n domain.ScreenedName
			if err := rows.Scan(&n.FirstName, &n.LastName); err != nil {
				return fmt.Errorf("scan %s: %w", table, err)
			}
			names = append(names, n)
		}
		return rows.Err()
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return names, nil
}

// FetchHighRiskCountries returns the trimmed, non-empty country names.
func (s *Store) FetchHighRiskCountries(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FetchHighRiskCountries")
	defer span.End()

	query := fmt.Sprintf("SELECT coalesce(country, '') FROM %s", ident(s.tables.HighRiskCountries))

	countries := []string{}
	err := s.call(ctx, "high_risk_countries", func() error {
		countries = countries[:0]
		rows, err := s.db.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c string
			if err := rows.Scan(&c); err != nil {
				return fmt.Errorf("scan high risk country: %w", err)
			}
			if c = strings.TrimSpace(c); c != "" {
				countries = append(countries, c)
			}
		}
		return rows.Err()
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return countries, nil
}
