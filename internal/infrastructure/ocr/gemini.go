package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

// DefaultModel модель Gemini по умолчанию
const DefaultModel = "gemini-1.5-flash"

const prompt = `Перепиши весь печатный текст с изображения накладной или этикетки как есть, построчно.
Не исправляй и не поясняй. Если текста нет, верни пустой ответ.`

// GeminiRecognizer OCR через Gemini. Без ключа API распознавание отключено.
type GeminiRecognizer struct {
	APIKey string
	Model  string

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiRecognizer создаёт распознаватель
func NewGeminiRecognizer(apiKey, model string) *GeminiRecognizer {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &GeminiRecognizer{
		APIKey: strings.TrimSpace(apiKey),
		Model:  model,
	}
}

// Probe проверяет наличие ключа. Сеть не трогаем.
func (g *GeminiRecognizer) Probe() entity.Capability {
	if g.APIKey == "" {
		return entity.Unavailable("GEMINI_API_KEY is empty")
	}
	return entity.Available()
}

// Recognize возвращает сырой текст кадра
func (g *GeminiRecognizer) Recognize(ctx context.Context, frame entity.Frame) (port.TextBlock, error) {
	if frame.Image == nil {
		return port.TextBlock{}, errors.New("empty frame")
	}
	cl, err := g.clientFor(ctx)
	if err != nil {
		return port.TextBlock{}, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: 85}); err != nil {
		return port.TextBlock{}, fmt.Errorf("encode frame: %w", err)
	}

	m := cl.GenerativeModel(g.Model)
	m.SetTemperature(0)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt), genai.ImageData("jpeg", buf.Bytes()))
	if err != nil {
		return port.TextBlock{}, fmt.Errorf("gemini generate: %w", err)
	}
	return port.TextBlock{Text: strings.TrimSpace(responseText(resp))}, nil
}

// clientFor создаёт клиента при первом запросе
func (g *GeminiRecognizer) clientFor(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	if g.client != nil {
		return g.client, nil
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(g.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	g.client = cl
	return cl, nil
}

// Close освобождает клиента
func (g *GeminiRecognizer) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}

// responseText склеивает текстовые части всех кандидатов
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(string(t))
			}
		}
	}
	return sb.String()
}

var _ port.TextRecognizer = (*GeminiRecognizer)(nil)
