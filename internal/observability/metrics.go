// Package observability records runtime counters for the development runtime.
package observability

import (
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "bundlebid"

var (
	registerOnce sync.Once

	instructions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "instructions_total",
			Help:      "Instructions processed, by opcode and outcome.",
		},
		[]string{"op", "outcome"},
	)
	instructionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "instruction_duration_seconds",
			Help:      "Instruction processing time including account load and write-back.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	accountWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "account_writes_total",
			Help:      "Accounts written back or deleted after committed instructions.",
		},
		[]string{"kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(instructions, instructionDuration, accountWrites)
	})
}

// Outcome labels err: "ok", the auction error label, or "error".
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code, ok := auctionerr.CodeOf(err); ok {
		return code.Label()
	}
	return "error"
}

func RecordInstruction(op string, err error, duration time.Duration) {
	RegisterMetrics()
	instructions.WithLabelValues(op, Outcome(err)).Inc()
	instructionDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func RecordAccountWrites(puts, deletes int) {
	RegisterMetrics()
	accountWrites.WithLabelValues("put").Add(float64(puts))
	accountWrites.WithLabelValues("delete").Add(float64(deletes))
}

// WriteText writes this package's metric families in the text exposition format.
func WriteText(w io.Writer) error {
	RegisterMetrics()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	var errs []error
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespace+"_") {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
