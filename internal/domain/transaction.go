package domain

import "time"

// ============================================================
// Ledger rows
// ============================================================

// TransactionRecord is one row of the transaction ledger.
// Optional text fields use the empty string for "missing"; optional dates are nil.
type TransactionRecord struct {
	ID                int64     `json:"transaction_id"`
	AccountNo         string    `json:"account_no"`
	BenAccountNo      string    `json:"ben_account_no"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency,omitempty"`
	TransactionType   string    `json:"transaction_type"`
	Timestamp         time.Time `json:"timestamp"`
	BranchName        string    `json:"branch_name"`
	AccountHolderName string    `json:"account_holder_name,omitempty"`
	FullName          string    `json:"full_name"`
	BenFullName       string    `json:"ben_full_name"`
	Occupation        string    `json:"occupation"`
	Region            string    `json:"region"`
	BenRegion         string    `json:"ben_region"`
	BenCountry        string    `json:"ben_country,omitempty"`
	BenWoreda         string    `json:"ben_woreda,omitempty"`

	// KYC descriptive fields
	Sex              string `json:"sex,omitempty"`
	ResidenceCountry string `json:"residence_country,omitempty"`
	City             string `json:"city,omitempty"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	AccountType      string `json:"account_type,omitempty"`
	PassportNo       string `json:"passport_no,omitempty"`
	IDCardNo         string `json:"id_card_no,omitempty"`

	OpenedDate *time.Time `json:"opened_date,omitempty"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	ClosedDate *time.Time `json:"closed_date,omitempty"`

	// Derived by the ledger view from an explicit "now".
	AccountAgeDays int `json:"account_age_days"`
	LeadingDigit   int `json:"leading_digit"`
}

// HasAccountAge reports whether AccountAgeDays carries a real value.
func (t *TransactionRecord) HasAccountAge() bool {
	return t.OpenedDate != nil && t.AccountAgeDays >= 0
}

// KYCFieldCount is the number of fields inspected by KYCFilled.
const KYCFieldCount = 24

// KYCFilled returns how many of the KYC-relevant fields are populated.
func (t *TransactionRecord) KYCFilled() int {
	texts := []string{
		t.AccountNo, t.BenAccountNo, t.Currency, t.TransactionType, t.BranchName,
		t.AccountHolderName, t.FullName, t.BenFullName, t.Occupation, t.Region,
		t.BenRegion, t.BenCountry, t.BenWoreda, t.Sex, t.ResidenceCountry, t.City,
		t.Email, t.Phone, t.AccountType, t.PassportNo, t.IDCardNo,
	}
	n := 0
	for _, s := range texts {
		if s != "" {
			n++
		}
	}
	for _, d := range []*time.Time{t.OpenedDate, t.BirthDate, t.ClosedDate} {
		if d != nil {
			n++
		}
	}
	return n
}
