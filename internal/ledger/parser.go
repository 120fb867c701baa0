package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abhinav-singh-5383/rift-money-mulling/internal/common"
	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

// Required CSV columns.
const (
	ColTransactionID = "transaction_id"
	ColSenderID      = "sender_id"
	ColReceiverID    = "receiver_id"
	ColAmount        = "amount"
	ColTimestamp     = "timestamp"
)

// RequiredColumns lists the columns every upload must carry, in canonical order.
var RequiredColumns = []string{ColTransactionID, ColSenderID, ColReceiverID, ColAmount, ColTimestamp}

// timestampLayouts are tried in order. Go accepts fractional seconds after
// the seconds field even when the layout omits them.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// Parse reads a CSV with a header row into a Set. Missing required columns
// yield a validation error naming them. Unparseable or negative amounts become
// zero; empty account ids and unparseable timestamps yield a parse error.
func Parse(raw []byte) (Set, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return Set{}, common.Validation("CSV missing columns: %s", strings.Join(RequiredColumns, ", "))
	}
	if err != nil {
		return Set{}, common.Parse("CSV header unreadable: %v", err)
	}

	cols, err := indexColumns(header)
	if err != nil {
		return Set{}, err
	}

	var txs []models.Transaction
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Set{}, common.Parse("CSV row unreadable: %v", err)
		}
		line, _ := r.FieldPos(0)
		if isBlank(record) {
			continue
		}

		tx, err := parseRecord(record, cols, line)
		if err != nil {
			return Set{}, err
		}
		txs = append(txs, tx)
	}

	return NewSet(txs), nil
}

// MissingColumns returns the required columns absent from header, sorted.
func MissingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	sort.Strings(missing)
	return missing
}

func indexColumns(header []string) (map[string]int, error) {
	if missing := MissingColumns(header); len(missing) > 0 {
		return nil, common.Validation("CSV missing columns: %s", strings.Join(missing, ", "))
	}
	cols := make(map[string]int, len(RequiredColumns))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if _, seen := cols[name]; !seen {
			cols[name] = i
		}
	}
	return cols, nil
}

func parseRecord(record []string, cols map[string]int, line int) (models.Transaction, error) {
	field := func(name string) string {
		idx := cols[name]
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	sender := field(ColSenderID)
	receiver := field(ColReceiverID)
	if sender == "" || receiver == "" {
		return models.Transaction{}, common.Parse("line %d: sender_id and receiver_id are required", line)
	}

	ts, err := ParseTimestamp(field(ColTimestamp))
	if err != nil {
		return models.Transaction{}, common.Parse("line %d: %v", line, err)
	}

	return models.Transaction{
		TransactionID: field(ColTransactionID),
		SenderID:      sender,
		ReceiverID:    receiver,
		Amount:        ParseAmount(field(ColAmount)),
		Timestamp:     ts,
	}, nil
}

// ParseAmount coerces s to a non-negative decimal; anything unparseable or
// negative becomes zero.
func ParseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseTimestamp accepts ISO-8601-like date-times. Values without an offset
// are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
