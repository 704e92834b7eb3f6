package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
)

// SaveTransactionReport stores the headline columns plus the full report as jsonb.
func (s *Store) SaveTransactionReport(ctx context.Context, report *domain.TransactionRiskReport) error {
	ctx, span := tracer.Start(ctx, "Postgres.SaveTransactionReport")
	defer span.End()
	span.SetAttributes(
		attribute.String("report.id", report.ID),
		attribute.String("risk.level", string(report.RiskLevel)),
	)

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode transaction report: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, transaction_id, account_no, overall_risk_score, risk_level, reason_codes, payload, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, ident(s.tables.TransactionReports))

	err = s.call(ctx, "transaction_reports", func() error {
		_, err := s.db.Exec(ctx, query,
			report.ID, report.TransactionID, report.FromAccount, report.OverallRiskScore,
			string(report.RiskLevel), reasonCodes(report.ReasonCodes), payload, report.GeneratedAt,
		)
		return err
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// SaveCustomerReport stores the headline and review columns plus the full report as jsonb.
func (s *Store) SaveCustomerReport(ctx context.Context, report *domain.CustomerRiskReport) error {
	ctx, span := tracer.Start(ctx, "Postgres.SaveCustomerReport")
	defer span.End()
	span.SetAttributes(
		attribute.String("report.id", report.ID),
		attribute.String("risk.level", string(report.RiskLevel)),
	)

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode customer report: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, transaction_id, account_no, overall_risk_score, risk_level, reason_codes, status, next_review_date, payload, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, ident(s.tables.CustomerReports))

	err = s.call(ctx, "customer_reports", func() error {
		_, err := s.db.Exec(ctx, query,
			report.ID, report.TransactionID, report.AccountNo, report.OverallRiskScore,
			string(report.RiskLevel), reasonCodes(report.ReasonCodes), report.Status,
			report.NextReviewDate, payload, report.GeneratedAt,
		)
		return err
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// reasonCodes keeps the NOT NULL text[] column satisfied.
func reasonCodes(codes []string) []string {
	if codes == nil {
		return []string{}
	}
	return codes
}
