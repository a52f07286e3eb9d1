package emotion

import (
	"errors"
	"math"
	"testing"
)

func TestDominant(t *testing.T) {
	s := Scores{Happy: 10, Sad: 70, Neutral: 20}

	l, share, err := s.Dominant()
	if err != nil {
		t.Fatalf("Dominant: %v", err)
	}
	if l != Sad {
		t.Errorf("label = %s, want sad", l)
	}
	if math.Abs(share-0.7) > 1e-9 {
		t.Errorf("share = %v, want 0.7", share)
	}
	if got := Percent(share); got != 70 {
		t.Errorf("Percent = %d, want 70", got)
	}
}

func TestDominantTieUsesLabelOrder(t *testing.T) {
	s := Scores{Neutral: 0.5, Happy: 0.5}

	l, _, err := s.Dominant()
	if err != nil {
		t.Fatalf("Dominant: %v", err)
	}
	if l != Happy {
		t.Errorf("label = %s, want happy (first in Labels)", l)
	}
}

func TestDominantEmpty(t *testing.T) {
	l, _, err := Scores{}.Dominant()
	if !errors.Is(err, ErrNoScores) {
		t.Fatalf("err = %v, want ErrNoScores", err)
	}
	if l != Neutral {
		t.Errorf("label = %s, want neutral", l)
	}
}

func TestFromNamesFoldsAliases(t *testing.T) {
	s := FromNames(map[string]float64{
		"Happiness": 0.2,
		"contempt":  0.1,
		"disgust":   0.3,
		"unknown":   5,
		"fear":      -1,
	})

	if s[Happy] != 0.2 {
		t.Errorf("happy = %v", s[Happy])
	}
	if math.Abs(s[Disgust]-0.4) > 1e-9 {
		t.Errorf("disgust = %v, want 0.4", s[Disgust])
	}
	if _, ok := s[Fear]; ok {
		t.Error("negative score should be dropped")
	}
	if len(s) != 2 {
		t.Errorf("len = %d, want 2", len(s))
	}
}

func TestSoftmax(t *testing.T) {
	p := Softmax([]float64{1, 2, 3})

	var sum float64
	for _, v := range p {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("sum = %v", sum)
	}
	if !(p[2] > p[1] && p[1] > p[0]) {
		t.Errorf("order not preserved: %v", p)
	}
	if Softmax(nil) != nil {
		t.Error("Softmax(nil) should be nil")
	}
}

func TestOneHot(t *testing.T) {
	l, share, err := OneHot(Surprise, 0.65).Dominant()
	if err != nil {
		t.Fatal(err)
	}
	if l != Surprise || Percent(share) != 65 {
		t.Errorf("got %s %d%%", l, Percent(share))
	}
}

func TestGuess(t *testing.T) {
	cases := []struct {
		cx, cy float64
		want   Label
	}{
		{0.5, 0.2, Surprise},
		{0.1, 0.5, Sad},
		{0.9, 0.5, Happy},
		{0.5, 0.5, Neutral},
	}
	for _, c := range cases {
		got, conf := Guess(c.cx, c.cy)
		if got != c.want {
			t.Errorf("Guess(%v,%v) = %s, want %s", c.cx, c.cy, got, c.want)
		}
		if conf != heuristicConfidence {
			t.Errorf("conf = %v", conf)
		}
	}
}

func TestGuessAfterFailure(t *testing.T) {
	cases := []struct {
		cx   float64
		want Label
	}{
		{0.1, Sad},
		{0.9, Happy},
		{0.5, Neutral},
	}
	for _, c := range cases {
		got, conf := GuessAfterFailure(c.cx)
		if got != c.want {
			t.Errorf("GuessAfterFailure(%v) = %s, want %s", c.cx, got, c.want)
		}
		if conf != recoveryConfidence {
			t.Errorf("conf = %v", conf)
		}
	}
}

func TestAvatarFor(t *testing.T) {
	want := map[Label]Avatar{
		Happy:    AvatarHappy,
		Sad:      AvatarSad,
		Angry:    AvatarAngry,
		Neutral:  AvatarNeutral,
		Surprise: AvatarConfused,
		Fear:     AvatarSad,
		Disgust:  AvatarAngry,
		"none":   AvatarNeutral,
	}
	for l, a := range want {
		if got := AvatarFor(l); got != a {
			t.Errorf("AvatarFor(%s) = %s, want %s", l, got, a)
		}
	}
}

func TestListenerAvatarFor(t *testing.T) {
	tests := []struct {
		label   Label
		current Avatar
		want    Avatar
	}{
		{Happy, AvatarSad, AvatarHappy},
		{Sad, AvatarHappy, AvatarSad},
		{Angry, AvatarNeutral, AvatarAngry},
		{Neutral, AvatarAngry, AvatarNeutral},
		{Fear, AvatarNeutral, AvatarSurprised},
		{Surprise, AvatarHappy, AvatarSurprised},
		{Disgust, AvatarHappy, AvatarHappy},
		{"none", AvatarSad, AvatarSad},
	}

	for _, tt := range tests {
		if got := ListenerAvatarFor(tt.label, tt.current); got != tt.want {
			t.Errorf("ListenerAvatarFor(%s, %s) = %s, want %s", tt.label, tt.current, got, tt.want)
		}
	}
}
