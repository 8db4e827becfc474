package shuffle

import (
	"math/rand"
	"time"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/models"
)

// Shuffler produces randomized copies of a roster.
// It is not safe for concurrent use; the controller only touches it from its loop.
type Shuffler struct {
	rng *rand.Rand
}

// NewShuffler constructs a Shuffler around rng. A nil rng gets its own time-based seed.
func NewShuffler(rng *rand.Rand) *Shuffler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Shuffler{rng: rng}
}

// Shuffle returns every member in uniformly random order with Selected cleared.
// The input slice is left untouched.
func (s *Shuffler) Shuffle(members []models.Member) []models.Member {
	out := models.CloneMembers(members)
	// rand.Shuffle is Fisher-Yates, so every permutation is equally likely.
	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	for i := range out {
		out[i].Selected = false
	}
	return out
}

// Intn draws a uniform index in [0, n). n must be positive.
func (s *Shuffler) Intn(n int) int {
	return s.rng.Intn(n)
}
