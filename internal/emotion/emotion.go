// Package emotion holds the fixed emotion label set and the scoring helpers
// shared by every classifier backend.
package emotion

import (
	"errors"
	"math"
	"strings"
)

type Label string

const (
	Happy    Label = "happy"
	Sad      Label = "sad"
	Angry    Label = "angry"
	Neutral  Label = "neutral"
	Surprise Label = "surprise"
	Fear     Label = "fear"
	Disgust  Label = "disgust"
)

// Labels is the canonical order. Arg-max ties resolve to the earliest entry.
var Labels = []Label{Happy, Sad, Angry, Neutral, Surprise, Fear, Disgust}

var ErrNoScores = errors.New("emotion: no scores")

// Scores maps a label to a non-negative score. Scales vary by backend
// (probabilities, percentages, logits after softmax).
type Scores map[Label]float64

func (l Label) Valid() bool {
	for _, known := range Labels {
		if l == known {
			return true
		}
	}
	return false
}

func (l Label) String() string {
	return string(l)
}

var aliases = map[string]Label{
	"happy":     Happy,
	"happiness": Happy,
	"joy":       Happy,
	"sad":       Sad,
	"sadness":   Sad,
	"angry":     Angry,
	"anger":     Angry,
	"neutral":   Neutral,
	"surprise":  Surprise,
	"surprised": Surprise,
	"fear":      Fear,
	"fearful":   Fear,
	"disgust":   Disgust,
	"disgusted": Disgust,
	"contempt":  Disgust,
}

// Parse maps a model-specific label name onto the fixed label set.
func Parse(name string) (Label, bool) {
	l, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	return l, ok
}

// FromNames converts a raw name->score map, summing scores of names that
// fold into the same label and dropping unknown names.
func FromNames(raw map[string]float64) Scores {
	s := make(Scores, len(raw))
	for name, v := range raw {
		l, ok := Parse(name)
		if !ok || math.IsNaN(v) || v < 0 {
			continue
		}
		s[l] += v
	}
	return s
}

// Dominant returns the label with the highest score and its share of the
// total, in [0,1].
func (s Scores) Dominant() (Label, float64, error) {
	var (
		best     Label
		bestVal  = -1.0
		total    float64
		hasScore bool
	)
	for _, l := range Labels {
		v, ok := s[l]
		if !ok {
			continue
		}
		hasScore = true
		total += v
		if v > bestVal {
			best, bestVal = l, v
		}
	}
	if !hasScore {
		return Neutral, 0, ErrNoScores
	}
	if total <= 0 {
		return best, 0, nil
	}
	return best, bestVal / total, nil
}

// Percent converts a [0,1] share into an integer percentage.
func Percent(share float64) int {
	p := int(math.Round(share * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// OneHot returns a score map that puts conf on l and spreads the rest evenly.
func OneHot(l Label, conf float64) Scores {
	s := make(Scores, len(Labels))
	rest := (1 - conf) / float64(len(Labels)-1)
	for _, other := range Labels {
		s[other] = rest
	}
	s[l] = conf
	return s
}

// Softmax turns raw network outputs into probabilities.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
