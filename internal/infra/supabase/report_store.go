package supabase

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
)

// --- Risk reports (implements port.ReportSink) ---

// SaveTransactionReport inserts one transaction risk report. Column names
// follow the report's JSON field names.
func (c *Client) SaveTransactionReport(ctx context.Context, report *domain.TransactionRiskReport) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveTransactionReport")
	defer span.End()
	span.SetAttributes(
		attribute.String("report.id", report.ID),
		attribute.String("risk.level", string(report.RiskLevel)),
	)

	err := c.call(ctx, "transaction_reports", func() error {
		return c.doPost(ctx, c.tables.TransactionReports, report)
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// SaveCustomerReport inserts one customer risk report.
func (c *Client) SaveCustomerReport(ctx context.Context, report *domain.CustomerRiskReport) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveCustomerReport")
	defer span.End()
	span.SetAttributes(
		attribute.String("report.id", report.ID),
		attribute.String("risk.level", string(report.RiskLevel)),
	)

	err := c.call(ctx, "customer_reports", func() error {
		return c.doPost(ctx, c.tables.CustomerReports, report)
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}
