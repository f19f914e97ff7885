package occlusion

import (
	"math/rand"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

const (
	// NumPoissonGrids is the number of precomputed jitter patterns.
	NumPoissonGrids = 32
	// PoissonGridSize is the number of points in each pattern.
	PoissonGridSize = 16

	// poissonFirst is the first pattern point used for jitter.
	poissonFirst = 4
	// maxPoissonTries bounds the candidates tried per cell.
	maxPoissonTries = 10

	poissonSeed    = 0x5eed
	poissonRadius  = 0.2
	poissonAttempt = 64
)

// poissonGrids holds the jitter patterns in the unit square. Points within a
// pattern are at least a shrinking radius apart, so any prefix is spread out.
var poissonGrids [NumPoissonGrids][PoissonGridSize]v2.Vec

func init() {
	rng := rand.New(rand.NewSource(poissonSeed))
	for i := range poissonGrids {
		poissonGrids[i] = dartThrow(rng)
	}
}

// dartThrow places PoissonGridSize points by rejection sampling, shrinking
// the exclusion radius whenever a point cannot be placed.
func dartThrow(rng *rand.Rand) [PoissonGridSize]v2.Vec {
	var pts [PoissonGridSize]v2.Vec
	r2 := poissonRadius * poissonRadius
	n := 0
	for n < PoissonGridSize {
		placed := false
		for a := 0; a < poissonAttempt && !placed; a++ {
			c := v2.Vec{X: rng.Float64(), Y: rng.Float64()}
			if farFromAll(c, pts[:n], r2) {
				pts[n] = c
				n++
				placed = true
			}
		}
		if !placed {
			r2 *= 0.81
		}
	}
	return pts
}

func farFromAll(c v2.Vec, pts []v2.Vec, r2 float64) bool {
	for _, p := range pts {
		d := c.Sub(p)
		if d.X*d.X+d.Y*d.Y < r2 {
			return false
		}
	}
	return true
}

// PoissonPoint returns point k of pattern grid, in the unit square.
func PoissonPoint(grid, k int) v2.Vec {
	return poissonGrids[grid%NumPoissonGrids][k%PoissonGridSize]
}
