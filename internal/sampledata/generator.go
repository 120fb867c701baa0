// Package sampledata produces the fixed demo ledger served by /demo and
// riftctl demo. The fixture plants every pattern the engine detects.
package sampledata

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abhinav-singh-5383/rift-money-mulling/internal/ledger"
)

const (
	seed           = 42
	timestampShape = "2006-01-02T15:04:05"
	normalAccounts = 19
	normalTxCount  = 28
)

var baseTime = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

type row struct {
	id       string
	sender   string
	receiver string
	amount   decimal.Decimal
	at       time.Time
}

type builder struct {
	rows []row
	rnd  *rand.Rand
}

func (b *builder) add(sender, receiver string, amount, offsetMinutes float64) {
	b.rows = append(b.rows, row{
		id:       fmt.Sprintf("TXN%04d", len(b.rows)+1),
		sender:   sender,
		receiver: receiver,
		amount:   decimal.NewFromFloat(amount).Round(2),
		at:       baseTime.Add(time.Duration(offsetMinutes * float64(time.Minute))).Truncate(time.Second),
	})
}

func (b *builder) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*b.rnd.Float64()
}

// Generate returns the demo ledger as CSV. The output is identical on
// every call.
func Generate() []byte {
	var buf bytes.Buffer
	if err := Write(&buf); err != nil {
		panic(fmt.Sprintf("sampledata: %v", err))
	}
	return buf.Bytes()
}

// Write streams the demo ledger to out as CSV.
func Write(out io.Writer) error {
	b := &builder{rnd: rand.New(rand.NewSource(seed))}

	// 3-cycle
	b.add("ACC001", "ACC002", 9500, 0)
	b.add("ACC002", "ACC003", 9300, 5)
	b.add("ACC003", "ACC001", 9100, 10)

	// 4-cycle
	b.add("ACC010", "ACC011", 45000, 2)
	b.add("ACC011", "ACC012", 44200, 7)
	b.add("ACC012", "ACC013", 43500, 12)
	b.add("ACC013", "ACC010", 42800, 18)

	// smurfing hub feeding layering accounts
	for i := 0; i < 12; i++ {
		b.add(fmt.Sprintf("SRF%03d", i+1), "ACC020", b.uniform(4000, 9000), float64(i*2))
	}
	for i := 0; i < 5; i++ {
		b.add("ACC020", fmt.Sprintf("LYR%03d", i+1), b.uniform(5000, 12000), float64(25+i*4))
	}

	// pass-through mules
	b.add("EXT001", "ACC030", 18000, 1)
	b.add("ACC030", "EXT002", 17500, 6)
	b.add("EXT003", "ACC031", 22000, 30)
	b.add("ACC031", "EXT004", 21500, 33)

	// background noise
	for i := 0; i < normalTxCount; i++ {
		from := b.rnd.Intn(normalAccounts)
		to := b.rnd.Intn(normalAccounts - 1)
		if to >= from {
			to++
		}
		b.add(fmt.Sprintf("NRM%03d", from+1), fmt.Sprintf("NRM%03d", to+1), b.uniform(100, 5000), b.uniform(0, 480))
	}

	sort.SliceStable(b.rows, func(i, j int) bool { return b.rows[i].at.Before(b.rows[j].at) })

	w := csv.NewWriter(out)
	if err := w.Write(ledger.RequiredColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range b.rows {
		if err := w.Write([]string{r.id, r.sender, r.receiver, r.amount.String(), r.at.Format(timestampShape)}); err != nil {
			return fmt.Errorf("write %s: %w", r.id, err)
		}
	}
	w.Flush()
	return w.Error()
}
