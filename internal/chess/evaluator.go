package chess

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

const (
	maxJitter         = 10.0
	centralityWeight  = 2.0
	centralityMaxDist = 7.0
	boardCenter       = 3.5
)

var materialValues = map[Kind]float64{
	Pawn:   10,
	Knight: 30,
	Bishop: 30,
	Rook:   50,
	Queen:  90,
	King:   900,
}

func MaterialValue(k Kind) float64 {
	return materialValues[k]
}

// JitterFunc returns a random term in [0,10) added to every score.
type JitterFunc func() float64

func NoJitter() float64 { return 0 }

// RandomJitter builds a JitterFunc backed by its own seeded source; safe for concurrent use.
func RandomJitter(seed int64) JitterFunc {
	var mu sync.Mutex
	r := rand.New(rand.NewSource(seed))
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return r.Float64() * maxJitter
	}
}

type ScoredMove struct {
	Move     Move
	Score    float64
	Captured Piece
}

type Evaluator struct {
	jitter JitterFunc
}

// NewEvaluator uses a time-seeded RandomJitter when jitter is nil.
func NewEvaluator(jitter JitterFunc) *Evaluator {
	if jitter == nil {
		jitter = RandomJitter(time.Now().UnixNano())
	}
	return &Evaluator{jitter: jitter}
}

// Centrality is (7 - manhattan distance from the board centre) * 2.
func Centrality(to Square) float64 {
	dist := math.Abs(float64(to.Row)-boardCenter) + math.Abs(float64(to.Col)-boardCenter)
	return (centralityMaxDist - dist) * centralityWeight
}

func (e *Evaluator) Score(b Board, m Move) float64 {
	score := e.jitter()
	if target := b.At(m.To); !target.IsZero() {
		score += MaterialValue(target.Kind)
	}
	return score + Centrality(m.To)
}

// Rank scores every move once and orders them best first. Ties keep enumeration order.
func (e *Evaluator) Rank(b Board, moves []Move) []ScoredMove {
	scored := make([]ScoredMove, 0, len(moves))
	for _, m := range moves {
		scored = append(scored, ScoredMove{Move: m, Score: e.Score(b, m), Captured: b.At(m.To)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

func (e *Evaluator) Best(b Board, moves []Move) (ScoredMove, bool) {
	if len(moves) == 0 {
		return ScoredMove{}, false
	}
	return e.Rank(b, moves)[0], true
}
