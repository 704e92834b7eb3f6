package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
)

// --- Ledger (implements port.LedgerSource) ---

// amount decodes a numeric column sent either as a JSON number or a string.
// Values that do not parse decode as 0.
type amount float64

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*a = 0
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		*a = 0
		return nil
	}
	f, _ := d.Float64()
	*a = amount(f)
	return nil
}

// ledgerRow maps the ledger table columns.
type ledgerRow struct {
	ID                int64   `json:"transaction_id"`
	AccountNo         string  `json:"account_no"`
	BenAccountNo      string  `json:"ben_account_no"`
	Amount            amount  `json:"amount"`
	Currency          string  `json:"currency"`
	TransactionType   string  `json:"transaction_type"`
	Timestamp         string  `json:"timestamp"`
	BranchName        string  `json:"branch_name"`
	AccountHolderName string  `json:"account_holder_name"`
	FullName          string  `json:"full_name"`
	BenFullName       string  `json:"ben_full_name"`
	Occupation        string  `json:"occupation"`
	Region            string  `json:"region"`
	BenRegion         string  `json:"ben_region"`
	BenCountry        string  `json:"ben_country"`
	BenWoreda         string  `json:"ben_woreda"`
	Sex               string  `json:"sex"`
	ResidenceCountry  string  `json:"residence_country"`
	City              string  `json:"city"`
	Email             string  `json:"email"`
	Phone             string  `json:"phone"`
	AccountType       string  `json:"account_type"`
	PassportNo        string  `json:"passport_no"`
	IDCardNo          string  `json:"id_card_no"`
	OpenedDate        *string `json:"opened_date"`
	BirthDate         *string `json:"birth_date"`
	ClosedDate        *string `json:"closed_date"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, ok := parseTime(*s)
	if !ok {
		return nil
	}
	return &t
}

func (r *ledgerRow) toDomain() (domain.TransactionRecord, bool) {
	ts, ok := parseTime(r.Timestamp)
	if !ok {
		return domain.TransactionRecord{}, false
	}
	return domain.TransactionRecord{
		ID:                r.ID,
		AccountNo:         r.AccountNo,
		BenAccountNo:      r.BenAccountNo,
		Amount:            float64(r.Amount),
		Currency:          r.Currency,
		TransactionType:   r.TransactionType,
		Timestamp:         ts,
		BranchName:        r.BranchName,
		AccountHolderName: r.AccountHolderName,
		FullName:          r.FullName,
		BenFullName:       r.BenFullName,
		Occupation:        r.Occupation,
		Region:            r.Region,
		BenRegion:         r.BenRegion,
		BenCountry:        r.BenCountry,
		BenWoreda:         r.BenWoreda,
		Sex:               r.Sex,
		ResidenceCountry:  r.ResidenceCountry,
		City:              r.City,
		Email:             r.Email,
		Phone:             r.Phone,
		AccountType:       r.AccountType,
		PassportNo:        r.PassportNo,
		IDCardNo:          r.IDCardNo,
		OpenedDate:        parseDate(r.OpenedDate),
		BirthDate:         parseDate(r.BirthDate),
		ClosedDate:        parseDate(r.ClosedDate),
	}, true
}

// FetchLedger pages through the whole ledger table in transaction_id order.
// Rows without a parseable timestamp are skipped.
func (c *Client) FetchLedger(ctx context.Context) ([]domain.TransactionRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchLedger")
	defer span.End()
	span.SetAttributes(attribute.String("table", c.tables.Ledger))

	records := make([]domain.TransactionRecord, 0, c.pageSize)
	skipped := 0
	for offset := 0; ; offset += c.pageSize {
		var page []ledgerRow
		err := c.call(ctx, "ledger", func() error {
			path := fmt.Sprintf("%s?select=*&order=transaction_id.asc&limit=%d&offset=%d", c.tables.Ledger, c.pageSize, offset)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			page = nil
			if len(body) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, &page); err != nil {
				return fmt.Errorf("failed to decode ledger page: %w", err)
			}
			return nil
		})
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		for i := range page {
			rec, ok := page[i].toDomain()
			if !ok {
				skipped++
				continue
			}
			records = append(records, rec)
		}
		if len(page) < c.pageSize {
			break
		}
	}

	if skipped > 0 {
		c.logger.Warn("supabase: skipped ledger rows without timestamp", zap.Int("skipped", skipped))
	}
	span.SetAttributes(attribute.Int("ledger.rows", len(records)))
	return records, nil
}
