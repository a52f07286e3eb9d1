package pipeline

import (
	"context"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/pkg/log"
)

// Heuristic guesses the emotion from the face position. It never fails.
type Heuristic struct{}

func (Heuristic) Classify(_ context.Context, frame Frame, face Face) (emotion.Scores, error) {
	w, h := frame.Size()
	cx, cy := Normalize(Center(face.Box), w, h)
	label, conf := emotion.Guess(cx, cy)
	return emotion.OneHot(label, conf), nil
}

// Recovery is the stand-in for a loaded model whose call failed. It only
// looks at the horizontal position and never answers surprise.
type Recovery struct{}

func (Recovery) Classify(_ context.Context, frame Frame, face Face) (emotion.Scores, error) {
	w, h := frame.Size()
	cx, _ := Normalize(Center(face.Box), w, h)
	label, conf := emotion.GuessAfterFailure(cx)
	return emotion.OneHot(label, conf), nil
}

// Fallback asks Primary first and Secondary when Primary fails.
type Fallback struct {
	Primary   EmotionClassifier
	Secondary EmotionClassifier
}

func (f Fallback) Classify(ctx context.Context, frame Frame, face Face) (emotion.Scores, error) {
	scores, err := f.Primary.Classify(ctx, frame, face)
	if err == nil {
		return scores, nil
	}
	log.Warn(log.Fields{"error": err.Error(), "sequence": frame.Sequence}, "emotion classifier failed, using fallback")
	return f.Secondary.Classify(ctx, frame, face)
}
