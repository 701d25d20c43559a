package session

import (
	"math/rand"

	"github.com/yyashhp/sim-exchange/internal/common"
	"github.com/yyashhp/sim-exchange/internal/config"
)

// GenerateInventory rolls a starting inventory whose scrap value lands in
// [T*(1-f), T*(1+f)] for target T and randomization factor f. Deterministic
// under a seeded rng.
func GenerateInventory(rng *rand.Rand, g *config.Game) map[common.Product]int64 {
	target := float64(g.InventoryTargetValue)
	lower := target * (1 - g.InventoryFactor)
	upper := target * (1 + g.InventoryFactor)

	inv := make(map[common.Product]int64, len(g.Products))
	for _, p := range g.Products {
		inv[p] = 0
	}

	cheapest := g.Products[0]
	for _, p := range g.Products {
		if g.ScrapValues[p] < g.ScrapValues[cheapest] {
			cheapest = p
		}
	}

	var current int64
	for float64(current) < lower {
		p := g.Products[rng.Intn(len(g.Products))]
		v := g.ScrapValues[p]
		if float64(current+v) <= upper {
			inv[p]++
			current += v
			continue
		}
		// The draw no longer fits under the ceiling. If not even the
		// cheapest good fits, the band is exhausted.
		if float64(current+g.ScrapValues[cheapest]) > upper {
			break
		}
	}

	// Top up with the cheapest good while it fits and we are short of the
	// target.
	for current < g.InventoryTargetValue {
		v := g.ScrapValues[cheapest]
		if float64(current+v) > upper {
			break
		}
		inv[cheapest]++
		current += v
	}

	return inv
}
