package jobs

import (
	"sort"
	"sync"

	"github.com/abhinav-singh-5383/rift-money-mulling/internal/common"
	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

// ErrNoAnalysis is returned by Report before any analysis has completed.
var ErrNoAnalysis error = &common.DetailError{
	Class:  common.ErrNotFound,
	Detail: "No analysis yet. Call /demo or /upload first.",
}

// Cache holds the most recently completed analysis. Writers race freely;
// the last Store wins.
type Cache struct {
	mu     sync.RWMutex
	latest *models.AnalysisResult
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Store replaces the cached analysis. Nil results are ignored.
func (c *Cache) Store(result *models.AnalysisResult) {
	if result == nil {
		return
	}
	c.mu.Lock()
	c.latest = result
	c.mu.Unlock()
}

// Latest returns the cached analysis, if any.
func (c *Cache) Latest() (*models.AnalysisResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.latest != nil
}

// Report shapes the cached analysis into the downloadable report.
func (c *Cache) Report() (models.Report, error) {
	latest, ok := c.Latest()
	if !ok {
		return models.Report{}, ErrNoAnalysis
	}
	return BuildReport(latest), nil
}

// BuildReport lists every account with a positive score, highest first,
// together with the rings and summary of result.
func BuildReport(result *models.AnalysisResult) models.Report {
	nodes := result.NodesFull
	if nodes == nil {
		nodes = result.Nodes
	}

	accounts := make([]models.SuspiciousAccount, 0)
	for _, n := range nodes {
		if n.SuspicionScore <= 0 {
			continue
		}
		accounts = append(accounts, models.SuspiciousAccount{
			AccountID:        n.ID,
			SuspicionScore:   n.SuspicionScore,
			DetectedPatterns: n.DetectedPatterns,
			RingID:           n.RingID.OrEmpty(),
		})
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].SuspicionScore > accounts[j].SuspicionScore
	})

	rings := result.FraudRings
	if rings == nil {
		rings = []models.FraudRing{}
	}
	return models.Report{
		SuspiciousAccounts: accounts,
		FraudRings:         rings,
		Summary:            result.Summary,
	}
}
