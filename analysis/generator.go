package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils/logging"

	"google.golang.org/genai"
)

const minResponseLength = 10

// Generator produces the raw model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

type GeneratorConfig struct {
	Project  string
	Location string
	Model    string
	// ApiKey selects the Gemini Developer API instead of Vertex AI.
	ApiKey string

	SystemInstruction string
}

type VertexGenerator struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func generateContentConfig(systemInstruction string) *genai.GenerateContentConfig {
	offFor := func(category genai.HarmCategory) *genai.SafetySetting {
		return &genai.SafetySetting{Category: category, Threshold: genai.HarmBlockThresholdOff}
	}

	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.3),
		TopP:            genai.Ptr[float32](0.85),
		MaxOutputTokens: 20055,
		SafetySettings: []*genai.SafetySetting{
			offFor(genai.HarmCategoryHateSpeech),
			offFor(genai.HarmCategoryDangerousContent),
			offFor(genai.HarmCategorySexuallyExplicit),
			offFor(genai.HarmCategoryHarassment),
		},
		// answers are grounded on live search results
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemInstruction)},
		},
	}
}

func NewVertexGenerator(ctx context.Context, cfg GeneratorConfig) (*VertexGenerator, error) {
	backend := "vertex_ai"
	clientConfig := &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  cfg.Project,
		Location: cfg.Location,
	}
	if cfg.ApiKey != "" {
		backend = "gemini_api"
		clientConfig = &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  cfg.ApiKey,
		}
	} else if cfg.Project == "" {
		return nil, fmt.Errorf("project is required for the vertex ai backend")
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	systemInstruction := cfg.SystemInstruction
	if systemInstruction == "" {
		systemInstruction = SystemInstruction
	}

	slog.Info("initialized generator", "project", cfg.Project, "location", cfg.Location, "model", cfg.Model, "backend", backend, "code", logging.AI_GENERATE)

	return &VertexGenerator{
		client: client,
		model:  cfg.Model,
		config: generateContentConfig(systemInstruction),
	}, nil
}

func (g *VertexGenerator) Model() string {
	return g.model
}

func (g *VertexGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	slog.Info("calling model", "model", g.model, "code", logging.AI_GENERATE)

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	var text strings.Builder
	for chunk, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, g.config) {
		if err != nil {
			slog.Error("error streaming model response", "error", err, "code", logging.AI_GENERATE)
			return "", fmt.Errorf("error generating content: %w", err)
		}
		if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil || len(chunk.Candidates[0].Content.Parts) == 0 {
			continue
		}
		text.WriteString(chunk.Text())
	}

	response := text.String()
	slog.Info("model generation complete", "response_length", len(response), "code", logging.AI_GENERATE)

	if len(response) < minResponseLength {
		slog.Error("received empty or very short response", "response", response, "code", logging.AI_GENERATE)
		return "", ErrIncompleteResponse
	}

	slog.Debug("model response preview", "preview", utils.Preview(response, 300), "code", logging.AI_GENERATE)

	return response, nil
}

// NewGenerator is a variable so that tests can replace the model backend.
var NewGenerator = func(ctx context.Context, cfg GeneratorConfig) (Generator, error) {
	return NewVertexGenerator(ctx, cfg)
}
