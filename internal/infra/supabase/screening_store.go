package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
)

// --- Screening lists (implements port.ScreeningSource) ---

type countryRow struct {
	Country string `json:"country"`
}

// FetchSanctions loads the sanctions list.
func (c *Client) FetchSanctions(ctx context.Context) ([]domain.ScreenedName, error) {
	return c.fetchNames(ctx, "sanctions", c.tables.Sanctions)
}

// FetchWatchlist loads the watchlist.
func (c *Client) FetchWatchlist(ctx context.Context) ([]domain.ScreenedName, error) {
	return c.fetchNames(ctx, "watchlist", c.tables.Watchlist)
}

// FetchPEP loads the politically exposed persons list.
func (c *Client) FetchPEP(ctx context.Context) ([]domain.ScreenedName, error) {
	return c.fetchNames(ctx, "pep", c.tables.PEP)
}

func (c *Client) fetchNames(ctx context.Context, service, table string) ([]domain.ScreenedName, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchScreeningList")
	defer span.End()
	span.SetAttributes(attribute.String("table", table))

	names := []domain.ScreenedName{}
	err := c.call(ctx, service, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, table+"?select=first_name,last_name")
		if err != nil {
			return err
		}
		if len(body) == 0 {
			return nil
		}
		var rows []domain.ScreenedName
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode %s: %w", table, err)
		}
		names = rows
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return names, nil
}

// FetchHighRiskCountries loads the high-risk country list.
func (c *Client) FetchHighRiskCountries(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchHighRiskCountries")
	defer span.End()

	countries := []string{}
	err := c.call(ctx, "high_risk_countries", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, c.tables.HighRiskCountries+"?select=country")
		if err != nil {
			return err
		}
		if len(body) == 0 {
			return nil
		}
		var rows []countryRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode high risk countries: %w", err)
		}
		countries = countries[:0]
		for _, r := range rows {
			if name := strings.TrimSpace(r.Country); name != "" {
				countries = append(countries, name)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return countries, nil
}
