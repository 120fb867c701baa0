package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhinav-singh-5383/rift-money-mulling/internal/common"
	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

func TestCache_ReportBeforeAnalysis(t *testing.T) {
	_, err := NewCache().Report()
	require.ErrorIs(t, err, ErrNoAnalysis)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, "No analysis yet. Call /demo or /upload first.", common.Detail(err))
}

func TestCache_LastWriteWins(t *testing.T) {
	c := NewCache()
	first := &models.AnalysisResult{Summary: models.Summary{TotalTransactions: 1}}
	second := &models.AnalysisResult{Summary: models.Summary{TotalTransactions: 2}}

	c.Store(first)
	c.Store(second)
	c.Store(nil)

	latest, ok := c.Latest()
	require.True(t, ok)
	assert.Same(t, second, latest)
}

func TestBuildReport_FiltersAndSorts(t *testing.T) {
	result := &models.AnalysisResult{
		Nodes: []models.AccountNode{{ID: "viz-only"}},
		NodesFull: []models.AccountNode{
			{ID: "A", SuspicionScore: 20, DetectedPatterns: []models.Pattern{models.PatternLayering}},
			{ID: "B", SuspicionScore: 0, DetectedPatterns: []models.Pattern{}},
			{ID: "C", SuspicionScore: 70, DetectedPatterns: []models.Pattern{models.PatternCycle, models.PatternLayering}, RingID: models.InRing("RING-ABC123")},
		},
		FraudRings: []models.FraudRing{{RingID: "RING-ABC123", MemberAccounts: []string{"C", "D"}, PatternType: models.RingCircularWash, RiskScore: 60}},
		Summary:    models.Summary{TotalAccountsAnalyzed: 3},
	}

	report := BuildReport(result)
	require.Len(t, report.SuspiciousAccounts, 2)
	assert.Equal(t, "C", report.SuspiciousAccounts[0].AccountID)
	assert.Equal(t, "RING-ABC123", report.SuspiciousAccounts[0].RingID)
	assert.Equal(t, "A", report.SuspiciousAccounts[1].AccountID)
	assert.Equal(t, "", report.SuspiciousAccounts[1].RingID)
	assert.Equal(t, result.FraudRings, report.FraudRings)
	assert.Equal(t, 3, report.Summary.TotalAccountsAnalyzed)
}

func TestBuildReport_EmptyAnalysis(t *testing.T) {
	report := BuildReport(&models.AnalysisResult{})
	assert.NotNil(t, report.SuspiciousAccounts)
	assert.NotNil(t, report.FraudRings)
	assert.Empty(t, report.SuspiciousAccounts)
}
