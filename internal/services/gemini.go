package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
)

const geminiPrompt = `Classify the facial expression of the person in this image.
Answer with JSON only, scoring each of happy, sad, angry, neutral, surprise, fear, disgust from 0 to 1:
{"emotions": {"happy": 0.0, "sad": 0.0, "angry": 0.0, "neutral": 0.0, "surprise": 0.0, "fear": 0.0, "disgust": 0.0}}`

// GeminiClassifier scores face crops with a multimodal Gemini model.
type GeminiClassifier struct {
	modelName string
	client    *genai.Client
}

func NewGeminiClassifier(ctx context.Context, apiKey, modelName string) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClassifier{modelName: modelName, client: client}, nil
}

func (g *GeminiClassifier) Classify(ctx context.Context, frame pipeline.Frame, face pipeline.Face) (emotion.Scores, error) {
	crop, err := pipeline.EncodeFace(frame, face)
	if err != nil {
		return nil, err
	}

	model := g.client.GenerativeModel(g.modelName)
	res, err := model.GenerateContent(ctx, genai.Text(geminiPrompt), genai.ImageData("jpeg", crop))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no response from Gemini API")
	}

	text, ok := res.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, errors.New("unexpected response format from Gemini API")
	}

	return parseGeminiScores(string(text))
}

// parseGeminiScores pulls the first JSON object out of a model reply, which
// may be wrapped in prose or a code fence.
func parseGeminiScores(text string) (emotion.Scores, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON in gemini reply: %w", emotion.ErrNoScores)
	}

	var reply struct {
		Emotions map[string]float64 `json:"emotions"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("decode gemini reply: %w", err)
	}

	scores := emotion.FromNames(reply.Emotions)
	if len(scores) == 0 {
		return nil, emotion.ErrNoScores
	}
	return scores, nil
}

func (g *GeminiClassifier) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
