package emotion

const (
	heuristicConfidence = 0.65
	recoveryConfidence  = 0.60
)

// Guess picks an emotion from where the face sits in the frame. cx and cy are
// the face center as fractions of the frame size (unmirrored). It stands in
// when no model is loaded.
func Guess(cx, cy float64) (Label, float64) {
	if cy < 0.4 {
		return Surprise, heuristicConfidence
	}
	return guessX(cx), heuristicConfidence
}

// GuessAfterFailure answers for a loaded model whose call failed: horizontal
// position only, never surprise, at a lower confidence.
func GuessAfterFailure(cx float64) (Label, float64) {
	return guessX(cx), recoveryConfidence
}

func guessX(cx float64) Label {
	switch {
	case cx < 0.33:
		return Sad
	case cx > 0.66:
		return Happy
	default:
		return Neutral
	}
}
