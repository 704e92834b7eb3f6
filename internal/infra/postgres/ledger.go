package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
)

// ledgerColumns are selected in the order scanLedgerRow reads them.
var ledgerColumns = []string{
	"transaction_id",
	"coalesce(account_no, '')",
	"coalesce(ben_account_no, '')",
	"coalesce(amount, 0)::float8",
	"coalesce(currency, '')",
	"coalesce(transaction_type, '')",
	`"timestamp"`,
	"coalesce(branch_name, '')",
	"coalesce(account_holder_name, '')",
	"coalesce(full_name, '')",
	"coalesce(ben_full_name, '')",
	"coalesce(occupation, '')",
	"coalesce(region, '')",
	"coalesce(ben_region, '')",
	"coalesce(ben_country, '')",
	"coalesce(ben_woreda, '')",
	"coalesce(sex, '')",
	"coalesce(residence_country, '')",
	"coalesce(city, '')",
	"coalesce(email, '')",
	"coalesce(phone, '')",
	"coalesce(account_type, '')",
	"coalesce(passport_no, '')",
	"coalesce(id_card_no, '')",
	"opened_date",
	"birth_date",
	"closed_date",
}

func scanLedgerRow(rows pgx.Rows) (domain.TransactionRecord, *time.Time, error) {
	var (
		r  domain.TransactionRecord
		ts *time.Time
	)
	err := rows.Scan(
		&r.ID, &r.AccountNo, &r.BenAccountNo, &r.Amount, &r.Currency, &r.TransactionType,
		&ts,
		&r.BranchName, &r.AccountHolderName, &r.FullName, &r.BenFullName,
		&r.Occupation, &r.Region, &r.BenRegion, &r.BenCountry, &r.BenWoreda,
		&r.Sex, &r.ResidenceCountry, &r.City, &r.Email, &r.Phone, &r.AccountType,
		&r.PassportNo, &r.IDCardNo,
		&r.OpenedDate, &r.BirthDate, &r.ClosedDate,
	)
	return r, ts, err
}

// FetchLedger reads the whole ledger in transaction_id order.
// Rows with a NULL timestamp are skipped.
func (s *Store) FetchLedger(ctx context.Context) ([]domain.TransactionRecord, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FetchLedger")
	defer span.End()
	span.SetAttributes(attribute.String("table", s.tables.Ledger))

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY transaction_id",
		strings.Join(ledgerColumns, ", "), ident(s.tables.Ledger))

	records := []domain.TransactionRecord{}
	skipped := 0
	err := s.call(ctx, "ledger", func() error {
		records = records[:0]
		skipped = 0

		rows, err := s.db.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, ts, err := scanLedgerRow(rows)
			if err != nil {
				return fmt.Errorf("scan ledger row: %w", err)
			}
			if ts == nil {
				skipped++
				continue
			}
			rec.Timestamp = *ts
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if skipped > 0 {
		s.logger.Warn("postgres: skipped ledger rows without timestamp", zap.Int("skipped", skipped))
	}
	span.SetAttributes(attribute.Int("ledger.rows", len(records)))
	return records, nil
}
