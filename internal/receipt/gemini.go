package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finance/internal/log"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

const prompt = "Analyze this receipt image and extract the following fields.\n" +
	"Return STRICT JSON only, a single object with:\n" +
	"- \"amount\": the total paid, as a number without currency symbol\n" +
	"- \"date\": the purchase date, ISO format \"YYYY-MM-DD\"\n" +
	"- \"description\": a short description of the purchase\n" +
	"- \"merchantName\": the store or merchant name\n" +
	"- \"category\": one of housing, transportation, groceries, utilities, " +
	"entertainment, food, shopping, healthcare, education, personal, travel, " +
	"insurance, gifts, bills, other-expense\n" +
	"Do NOT wrap the response in code fences.\n"

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiExtractor extracts receipt fields with a Gemini model.
type GeminiExtractor struct {
	models contentGenerator
	model  string
}

// NewGeminiExtractor creates a Gemini API client authenticated with apiKey.
func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("create genai client: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiExtractor(client.Models, model), nil
}

func newGeminiExtractor(models contentGenerator, model string) *GeminiExtractor {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiExtractor{models: models, model: model}
}

func (e *GeminiExtractor) Extract(ctx context.Context, image []byte, mimeType string) (Draft, error) {
	if err := CheckImage(image, mimeType); err != nil {
		return Draft{}, err
	}

	start := time.Now()
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{
					InlineData: &genai.Blob{
						MIMEType: strings.ToLower(mimeType),
						Data:     image,
					},
				},
				{Text: prompt},
			},
		},
	}

	resp, err := e.models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return Draft{}, fmt.Errorf("extract receipt: generate content: %w", err)
	}

	draft, err := decodeDraft(resp.Text())
	if err != nil {
		return Draft{}, fmt.Errorf("extract receipt: %w", err)
	}

	slog.InfoContext(ctx, "Receipt extracted",
		log.FieldComponent, log.ComponentReceipt,
		log.FieldOperation, log.OpExtract,
		log.FieldAmount, draft.Amount,
		log.FieldCategory, draft.Category,
		log.FieldDuration, time.Since(start).Milliseconds())
	return draft, nil
}
