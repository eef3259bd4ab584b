//go:build integration

package integration

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/internal/repositories/lineitems"
	"github.com/Ramsey-B/clover/internal/repositories/matchaudit"
	"github.com/Ramsey-B/clover/internal/repositories/orders"
	ctxmiddleware "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/refindex"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

// noopLocker stands in for redis; a single test process has no rebuild races.
type noopLocker struct{}

func (noopLocker) AcquireLock(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (noopLocker) ReleaseLock(context.Context, string) error                        { return nil }

// noopEmitter drops events; these tests target database semantics.
type noopEmitter struct{}

func (noopEmitter) EmitClaimMatched(context.Context, string, string, string, *models.MatchResult) error {
	return nil
}
func (noopEmitter) EmitClaimUnmatched(context.Context, string, string, string, *models.MatchResult) error {
	return nil
}
func (noopEmitter) EmitClaimFailed(context.Context, string, string, string, error) error {
	return nil
}
func (noopEmitter) EmitBatchCompleted(context.Context, string, *models.BatchReport) error {
	return nil
}

func startPostgres(t *testing.T) database.DB {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "user",
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "clover",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%d user=user password=password dbname=clover sslmode=disable", host, port.Int())

	var db *sqlx.DB
	require.Eventually(t, func() bool {
		db, err = sqlx.Connect("postgres", dsn)
		return err == nil
	}, 30*time.Second, time.Second)

	logger := getTestLogger()

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	require.NoError(t, err)
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: "../../migrations",
	})
	require.NoError(t, migrations.Migrate("clover", driver))

	t.Cleanup(func() { _ = db.Close() })
	return database.NewDatabaseInstance(db, logger)
}

func seedLedger(t *testing.T, ctx context.Context, db database.DB) {
	t.Helper()
	logger := getTestLogger()

	ordersRepo := orders.NewRepository(db, logger)
	_, err := ordersRepo.UpsertBatch(ctx, []models.OrderRecord{
		{OrderID: "ORD-1001", FileMakerRecordNumber: "FM-77", PatientName: "Smith, John"},
		{OrderID: "ORD-1002", FileMakerRecordNumber: "FM-78", PatientLastName: "Doe", PatientFirstName: "Jane"},
	})
	require.NoError(t, err)

	itemsRepo := lineitems.NewRepository(db, logger)
	_, err = itemsRepo.InsertBatch(ctx, []lineitems.LineItemRow{
		{OrderID: "ORD-1001", DateOfService: nullStr("2024-03-15"), CPTCode: nullStr("99213")},
		{OrderID: "ORD-1001", DateOfService: nullStr("2024-03-15"), CPTCode: nullStr("97110")},
		{OrderID: "ORD-1002", DateOfService: nullStr("06/10/2024"), CPTCode: nullStr("73721")},
	})
	require.NoError(t, err)
}

func TestReconcileAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := startPostgres(t)
	logger := getTestLogger()
	ctx := ctxmiddleware.SetTenantID(context.Background(), "tenant-a")

	seedLedger(t, ctx, db)

	loader := refindex.NewLoader(orders.NewRepository(db, logger), lineitems.NewRepository(db, logger), logger)
	manager := refindex.NewManager(loader, logger, noopLocker{})
	_, err := manager.Rebuild(ctx)
	require.NoError(t, err)

	auditRepo := matchaudit.NewRepository(db, logger)
	proc := processor.NewProcessor(
		logger,
		matching.NewEngine(logger),
		manager,
		auditRepo,
		noopEmitter{},
		nil,
		2,
		time.Minute,
	)

	claims := []models.ClaimRecord{
		{
			ClaimID:     "clm-match",
			PatientInfo: models.PatientInfo{PatientName: "JOHN SMITH"},
			ServiceLines: []models.ServiceLine{
				{DateOfService: "2024-03-18", CPTCode: "99213"},
			},
		},
		{
			ClaimID:     "clm-stranger",
			PatientInfo: models.PatientInfo{PatientName: "Quincy Zebra"},
			ServiceLines: []models.ServiceLine{
				{DateOfService: "2024-03-18"},
			},
		},
		{
			ClaimID: "clm-blank",
			ServiceLines: []models.ServiceLine{
				{DateOfService: "2024-03-18"},
			},
		},
	}

	report, err := proc.ProcessBatch(ctx, "batch-pg", claims)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 2, report.Unmatched)
	assert.Equal(t, 0, report.Failed)

	matched := report.Outcomes[0]
	require.NotNil(t, matched.Result)
	assert.Equal(t, "ORD-1001", matched.Result.OrderID)
	assert.Equal(t, "FM-77", matched.Claim.FileMakerRecordNumber)

	rows, err := auditRepo.ListByBatch(ctx, "batch-pg")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byClaim := make(map[string]matchaudit.MatchResultRow, len(rows))
	for _, row := range rows {
		byClaim[row.ClaimID] = row
	}

	matchedRow := byClaim["clm-match"]
	assert.Equal(t, string(models.MatchStatusMatched), matchedRow.Status)
	assert.Equal(t, "ORD-1001", matchedRow.OrderID.String)
	assert.Equal(t, "JOHN SMITH", matchedRow.ClaimName)
	assert.Equal(t, "HHIJMNOST", matchedRow.NormalizedName)
	scores := matchedRow.Scores.GetValue()
	require.NotNil(t, scores)
	assert.GreaterOrEqual(t, scores.CompositeScore, 90.0)

	assert.Equal(t, string(models.MatchStatusUnmatched), byClaim["clm-stranger"].Status)
	assert.Equal(t, string(models.MatchStatusUnmatched), byClaim["clm-blank"].Status)

	entries := matchaudit.ToEntries(rows)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		assert.Equal(t, rows[i].ClaimID, entry.ClaimID)
		assert.Equal(t, "batch-pg", entry.BatchID)
	}

	byEntry := make(map[string]matchaudit.Entry, len(entries))
	for _, entry := range entries {
		byEntry[entry.ClaimID] = entry
	}
	assert.Equal(t, "ORD-1001", byEntry["clm-match"].OrderID)
	assert.Equal(t, "FM-77", byEntry["clm-match"].FileMakerRecordNumber)
	require.NotNil(t, byEntry["clm-match"].Scores)
	assert.Empty(t, byEntry["clm-blank"].OrderID)
	assert.Equal(t, "missing name or date", byEntry["clm-blank"].Reason)
}

func TestLedgerImportIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := startPostgres(t)
	logger := getTestLogger()
	ctx := context.Background()

	seedLedger(t, ctx, db)
	seedLedger(t, ctx, db)

	ordersRepo := orders.NewRepository(db, logger)
	orderCount, err := ordersRepo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, orderCount)

	itemsRepo := lineitems.NewRepository(db, logger)
	itemCount, err := itemsRepo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, itemCount)

	all, err := ordersRepo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ORD-1001", all[0].OrderID)
	assert.Equal(t, "ORD-1002", all[1].OrderID)
}
