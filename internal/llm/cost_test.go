package llm

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
)

func TestCost(t *testing.T) {
	rates := config.Rates{InputPerMillion: 2, OutputPerMillion: 8}
	assert.InDelta(t, 0.002+0.004, Cost(1000, 500, rates), 1e-12)
	assert.Zero(t, Cost(1000, 500, config.Rates{}))
}

func TestCostLedger_OrderIndependent(t *testing.T) {
	contributions := make([]float64, 200)
	for i := range contributions {
		contributions[i] = float64(i%17) * 0.000731
	}

	var forward CostLedger
	for _, c := range contributions {
		forward.Add(c)
	}

	shuffled := append([]float64(nil), contributions...)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	var backward CostLedger
	for _, c := range shuffled {
		backward.Add(c)
	}

	assert.InDelta(t, forward.Total(), backward.Total(), 1e-9)
}

func TestCostLedger_ConcurrentAdds(t *testing.T) {
	var ledger CostLedger
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				ledger.Add(0.5)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5000.0, ledger.Total())
}

func TestCostLedger_NeverDecrements(t *testing.T) {
	var ledger CostLedger
	ledger.Add(1.5)
	ledger.Add(-1)
	assert.Equal(t, 1.5, ledger.Total())
}

func TestCostLedger_Record(t *testing.T) {
	var ledger CostLedger
	cost := ledger.Record(&Response{InputTokens: 2_000_000, OutputTokens: 1_000_000}, config.Rates{InputPerMillion: 1, OutputPerMillion: 3})
	require.InDelta(t, 5.0, cost, 1e-12)
	assert.InDelta(t, 5.0, ledger.Total(), 1e-12)

	in, out := ledger.Tokens()
	assert.Equal(t, int64(2_000_000), in)
	assert.Equal(t, int64(1_000_000), out)
}
