package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single ledger row. Immutable once parsed.
type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	SenderID      string          `json:"sender_id"`
	ReceiverID    string          `json:"receiver_id"`
	Amount        decimal.Decimal `json:"amount"` // never negative
	Timestamp     time.Time       `json:"timestamp"`
}

// Pattern is a detected laundering behaviour tag on an account.
type Pattern string

const (
	PatternCycle    Pattern = "cycle"
	PatternSmurfing Pattern = "smurfing"
	PatternLayering Pattern = "layering"
)

// RingType classifies a fraud ring by the mean in-degree of its members.
type RingType string

const (
	RingSmurfing     RingType = "smurfing"
	RingCircularWash RingType = "circular_wash"
)

// RingMembership is the optional ring an account belongs to. The zero value
// means "no ring" and serializes as JSON null.
type RingMembership struct {
	id string
	ok bool
}

// InRing returns a membership naming ringID.
func InRing(ringID string) RingMembership {
	return RingMembership{id: ringID, ok: true}
}

// NoRing is the membership of accounts outside every ring.
var NoRing = RingMembership{}

// Get returns the ring id and whether the account is in a ring.
func (r RingMembership) Get() (string, bool) {
	return r.id, r.ok
}

// OrEmpty returns the ring id, or "" when there is none.
func (r RingMembership) OrEmpty() string {
	return r.id
}

func (r RingMembership) MarshalJSON() ([]byte, error) {
	if !r.ok {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}

func (r *RingMembership) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = NoRing
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	if id == "" {
		*r = NoRing
		return nil
	}
	*r = InRing(id)
	return nil
}

// AccountNode is a graph node with its derived risk attributes.
// Risk and Flags mirror SuspicionScore and DetectedPatterns for the dashboard.
type AccountNode struct {
	ID               string         `json:"id"`
	SuspicionScore   float64        `json:"suspicion_score"`
	Risk             float64        `json:"risk"`
	DetectedPatterns []Pattern      `json:"detected_patterns"`
	Flags            []Pattern      `json:"flags"`
	RingID           RingMembership `json:"ring_id"`
	InDegree         int            `json:"in_degree"`
	OutDegree        int            `json:"out_degree"`
}

// Edge is one transaction rendered as a directed graph edge.
type Edge struct {
	Source        string  `json:"source"`
	Target        string  `json:"target"`
	Amount        float64 `json:"amount"`
	TransactionID string  `json:"transaction_id"`
}

// FraudRing is one strongly connected component of size >= 2.
type FraudRing struct {
	RingID         string   `json:"ring_id"`
	MemberAccounts []string `json:"member_accounts"` // ascending
	PatternType    RingType `json:"pattern_type"`
	RiskScore      float64  `json:"risk_score"`
}

// Summary holds the headline counts of one analysis run.
type Summary struct {
	TotalAccountsAnalyzed     int     `json:"total_accounts_analyzed"`
	TotalTransactions         int     `json:"total_transactions"`
	SuspiciousAccountsFlagged int     `json:"suspicious_accounts_flagged"`
	FraudRingsDetected        int     `json:"fraud_rings_detected"`
	ProcessingTimeSeconds     float64 `json:"processing_time_seconds"`
	VizNodesShown             int     `json:"viz_nodes_shown"`
}

// AnalysisResult is the output of one engine run. NodesFull and EdgesFull are
// kept only for report generation and never leave the process as JSON.
type AnalysisResult struct {
	Nodes      []AccountNode `json:"nodes"`
	Edges      []Edge        `json:"edges"`
	Top10      []AccountNode `json:"top10"`
	FraudRings []FraudRing   `json:"fraud_rings"`
	Summary    Summary       `json:"summary"`

	NodesFull []AccountNode `json:"-"`
	EdgesFull []Edge        `json:"-"`
}

// SuspiciousAccount is one row of the downloadable report.
type SuspiciousAccount struct {
	AccountID        string    `json:"account_id"`
	SuspicionScore   float64   `json:"suspicion_score"`
	DetectedPatterns []Pattern `json:"detected_patterns"`
	RingID           string    `json:"ring_id"`
}

// Report is the downloadable forensic report built from the latest analysis.
type Report struct {
	SuspiciousAccounts []SuspiciousAccount `json:"suspicious_accounts"`
	FraudRings         []FraudRing         `json:"fraud_rings"`
	Summary            Summary             `json:"summary"`
}
