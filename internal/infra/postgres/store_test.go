package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/aml-risk-engine/internal/config"
	"github.com/boddenberg/aml-risk-engine/internal/domain"
	"github.com/boddenberg/aml-risk-engine/internal/infra/postgres"
	"github.com/boddenberg/aml-risk-engine/internal/infra/resilience"
)

var tables = config.Tables{
	Ledger:             "transactions",
	Sanctions:          "sanctions",
	Watchlist:          "watchlist",
	PEP:                "pep",
	HighRiskCountries:  "high_risk_countries",
	TransactionReports: "transaction_risk_profiles",
	CustomerReports:    "customer_risk_profiles",
	CustomerProfiles:   "customer_profile",
	OccupationProfiles: "occupation_profile",
	AccountAgeProfiles: "account_age_profile",
}

func newStore(t *testing.T) (*postgres.Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store := postgres.NewStore(mock, tables,
		resilience.NewCircuitBreaker("postgres-test", nil),
		resilience.Config{MaxRetries: 0},
		zap.NewNop(),
	)
	return store, mock
}

var ledgerCols = []string{
	"transaction_id", "account_no", "ben_account_no", "amount", "currency", "transaction_type",
	"timestamp", "branch_name", "account_holder_name", "full_name", "ben_full_name",
	"occupation", "region", "ben_region", "ben_country", "ben_woreda",
	"sex", "residence_country", "city", "email", "phone", "account_type",
	"passport_no", "id_card_no", "opened_date", "birth_date", "closed_date",
}

func ledgerRow(id int64, account string, amount float64, ts, opened *time.Time) []any {
	return []any{
		id, account, "B1", amount, "ETB", "TRANSFER",
		ts, "Bole", "", "Abebe Kebede", "Sara Tesfaye",
		"Merchant", "Addis Ababa", "Oromia", "Ethiopia", "",
		"M", "Ethiopia", "Addis Ababa", "", "", "SAVINGS",
		"EP123", "", opened, (*time.Time)(nil), (*time.Time)(nil),
	}
}

func TestFetchLedger_SkipsRowsWithoutTimestamp(t *testing.T) {
	store, mock := newStore(t)

	ts := time.Date(2024, 5, 30, 10, 0, 0, 0, time.UTC)
	opened := time.Date(2019, 1, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM "transactions" ORDER BY transaction_id`).
		WillReturnRows(mock.NewRows(ledgerCols).
			AddRow(ledgerRow(1, "A1", 1500.5, &ts, &opened)...).
			AddRow(ledgerRow(2, "A1", 10, (*time.Time)(nil), (*time.Time)(nil))...))

	records, err := store.FetchLedger(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, 1500.5, records[0].Amount)
	assert.True(t, records[0].Timestamp.Equal(ts))
	require.NotNil(t, records[0].OpenedDate)
	assert.Equal(t, 2019, records[0].OpenedDate.Year())
	assert.Nil(t, records[0].BirthDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchLedger_QueryErrorIsExternal(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery(`SELECT .+ FROM "transactions"`).WillReturnError(errors.New("connection reset"))

	_, err := store.FetchLedger(context.Background())

	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "postgres/ledger", ext.Service)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScreeningLists(t *testing.T) {
	store, mock := newStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`FROM "sanctions"`).
		WillReturnRows(mock.NewRows([]string{"first_name", "last_name"}).AddRow("Abebe", "Kebede"))
	mock.ExpectQuery(`FROM "high_risk_countries"`).
		WillReturnRows(mock.NewRows([]string{"country"}).AddRow(" Syria ").AddRow("").AddRow("Yemen"))
	mock.ExpectQuery(`FROM "pep"`).
		WillReturnRows(mock.NewRows([]string{"first_name", "last_name"}))

	sanctions, err := store.FetchSanctions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ScreenedName{{FirstName: "Abebe", LastName: "Kebede"}}, sanctions)

	countries, err := store.FetchHighRiskCountries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Syria", "Yemen"}, countries)

	pep, err := store.FetchPEP(ctx)
	require.NoError(t, err)
	assert.NotNil(t, pep)
	assert.Empty(t, pep)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTransactionReport(t *testing.T) {
	store, mock := newStore(t)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	report := &domain.TransactionRiskReport{
		ID:               "r-1",
		TransactionID:    42,
		FromAccount:      "A1",
		OverallRiskScore: 81.5,
		RiskLevel:        domain.RiskLevelCritical,
		GeneratedAt:      at,
	}

	mock.ExpectExec(`INSERT INTO "transaction_risk_profiles"`).
		WithArgs("r-1", int64(42), "A1", 81.5, "CRITICAL", []string{}, pgxmock.AnyArg(), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveTransactionReport(context.Background(), report))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCustomerReport(t *testing.T) {
	store, mock := newStore(t)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	next := at.AddDate(0, 0, 90)

	report := &domain.CustomerRiskReport{
		ID:               "c-1",
		TransactionID:    42,
		AccountNo:        "A1",
		OverallRiskScore: 12,
		RiskLevel:        domain.RiskLevelLow,
		ReasonCodes:      []string{"R_KYC"},
		Status:           "ACTIVE",
		NextReviewDate:   next,
		GeneratedAt:      at,
	}

	mock.ExpectExec(`INSERT INTO "customer_risk_profiles"`).
		WithArgs("c-1", int64(42), "A1", 12.0, "LOW", []string{"R_KYC"}, "ACTIVE", next, pgxmock.AnyArg(), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveCustomerReport(context.Background(), report))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceProfiles_Commits(t *testing.T) {
	store, mock := newStore(t)

	batch := &domain.ProfileBatch{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Customers:   []domain.CustomerProfile{{AccountNo: "A1"}, {AccountNo: "A2"}},
		AccountAges: []domain.AccountAgeSummary{{Bucket: "> 20", Count: 1}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "customer_profile"`).WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectCopyFrom(pgx.Identifier{"customer_profile"},
		[]string{"run_id", "generated_at", "account_no", "mean", "std", "count", "payload"}).
		WillReturnResult(2)
	mock.ExpectExec(`DELETE FROM "occupation_profile"`).WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM "account_age_profile"`).WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"account_age_profile"},
		[]string{"run_id", "generated_at", "bucket", "mean_age", "mean_amount", "std", "count"}).
		WillReturnResult(1)
	mock.ExpectCommit()

	require.NoError(t, store.ReplaceProfiles(context.Background(), batch))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceProfiles_RollsBackOnFailure(t *testing.T) {
	store, mock := newStore(t)

	batch := &domain.ProfileBatch{
		RunID:     "run-2",
		Customers: []domain.CustomerProfile{{AccountNo: "A1"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "customer_profile"`).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"customer_profile"},
		[]string{"run_id", "generated_at", "account_no", "mean", "std", "count", "payload"}).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.ReplaceProfiles(context.Background(), batch)

	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaAndPing(t *testing.T) {
	store, mock := newStore(t)

	for i := 0; i < 5; i++ {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	}
	mock.ExpectPing()

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
