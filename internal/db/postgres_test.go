package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

func sampleJob() models.Job {
	done := time.Date(2025, 1, 10, 8, 0, 5, 0, time.UTC)
	return models.Job{
		JobID:       uuid.New().String(),
		Status:      models.JobDone,
		CreatedAt:   done.Add(-5 * time.Second),
		CompletedAt: &done,
		Result: &models.AnalysisResult{
			NodesFull: []models.AccountNode{
				{ID: "A", SuspicionScore: 50, DetectedPatterns: []models.Pattern{models.PatternCycle}, RingID: models.InRing("RING-ABC123")},
				{ID: "B", SuspicionScore: 0, DetectedPatterns: []models.Pattern{}},
			},
			FraudRings: []models.FraudRing{{RingID: "RING-ABC123", MemberAccounts: []string{"A", "C"}, PatternType: models.RingCircularWash, RiskScore: 50}},
			Summary:    models.Summary{TotalAccountsAnalyzed: 2, FraudRingsDetected: 1},
		},
	}
}

func TestNewJobRow_FlattensResult(t *testing.T) {
	job := sampleJob()
	row := newJobRow(job)

	assert.Equal(t, job.JobID, row.JobID)
	assert.Equal(t, "done", row.Status)
	assert.Equal(t, 2, row.Summary.TotalAccountsAnalyzed)
	require.Len(t, row.Accounts, 1)
	assert.Equal(t, "A", row.Accounts[0].AccountID)
	assert.Equal(t, "RING-ABC123", row.Accounts[0].RingID)
	require.Len(t, row.Rings, 1)
	assert.Equal(t, []string{"cycle"}, patternStrings(row.Accounts[0].DetectedPatterns))
}

func TestNewJobRow_FailedJob(t *testing.T) {
	row := newJobRow(models.Job{JobID: "j", Status: models.JobError, ErrorDetail: "CSV missing columns: amount"})
	assert.Equal(t, "error", row.Status)
	assert.Equal(t, "CSV missing columns: amount", row.ErrorDetail)
	assert.Empty(t, row.Rings)
	assert.Empty(t, row.Accounts)
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz", time.Second)
	assert.Error(t, err)
}

// TestPostgresStore_SaveJobOutcome needs a live database in TEST_DATABASE_URL.
func TestPostgresStore_SaveJobOutcome(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	store, err := Connect(ctx, url, 5*time.Second)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.InitSchema(ctx))

	job := sampleJob()
	require.NoError(t, store.SaveJobOutcome(ctx, job))
	require.NoError(t, store.SaveJobOutcome(ctx, job), "saving twice replaces")

	var rings int
	require.NoError(t, store.pool.QueryRow(ctx, `SELECT count(*) FROM fraud_rings WHERE job_id = $1`, job.JobID).Scan(&rings))
	assert.Equal(t, 1, rings)

	processing := models.Job{JobID: uuid.New().String(), Status: models.JobProcessing}
	assert.Error(t, store.SaveJobOutcome(ctx, processing))
}
