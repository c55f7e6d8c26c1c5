package llm

import (
	"math"
	"sync/atomic"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
)

// CostLedger is a running, never-decreasing total of spend in USD.
// It is safe for concurrent use.
type CostLedger struct {
	bits         atomic.Uint64
	inputTokens  atomic.Int64
	outputTokens atomic.Int64
}

// Cost prices one response against a rate table
func Cost(inputTokens, outputTokens int64, rates config.Rates) float64 {
	return float64(inputTokens)*rates.InputPerMillion/1e6 + float64(outputTokens)*rates.OutputPerMillion/1e6
}

// Add atomically adds amount to the total. Negative amounts are ignored.
func (l *CostLedger) Add(amount float64) {
	if amount <= 0 || math.IsNaN(amount) {
		return
	}
	for {
		old := l.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + amount)
		if l.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Record prices a completed response, adds it to the ledger and returns the cost
func (l *CostLedger) Record(resp *Response, rates config.Rates) float64 {
	l.inputTokens.Add(resp.InputTokens)
	l.outputTokens.Add(resp.OutputTokens)
	cost := Cost(resp.InputTokens, resp.OutputTokens, rates)
	l.Add(cost)
	return cost
}

func (l *CostLedger) Total() float64 {
	return math.Float64frombits(l.bits.Load())
}

// Tokens returns the accumulated input and output token counts
func (l *CostLedger) Tokens() (input, output int64) {
	return l.inputTokens.Load(), l.outputTokens.Load()
}
