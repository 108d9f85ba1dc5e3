package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/publicidadxacarlos-cell/FinanzaAI/config"
	"github.com/publicidadxacarlos-cell/FinanzaAI/tracing"
)

const baseURL = "https://generativelanguage.googleapis.com/v1beta/models"

type Settings struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	ChatModel  string `mapstructure:"chat_model"`
	ImageModel string `mapstructure:"image_model"`
}

var httpClient *http.Client

func init() {
	httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// Client is a thin REST client over the Gemini generateContent API. All
// intelligence lives on the remote side; every method is one request,
// one response.
type Client struct {
	settings Settings
}

func New() (*Client, error) {
	var settings Settings
	if err := config.Unmarshal("gemini", &settings); err != nil {
		return nil, err
	}
	if settings.APIKey == "" {
		return nil, errors.New("gemini api_key not configured")
	}
	if settings.Model == "" {
		settings.Model = "gemini-3-flash-preview"
	}
	if settings.ChatModel == "" {
		settings.ChatModel = "gemini-3-pro-preview"
	}
	if settings.ImageModel == "" {
		settings.ImageModel = "gemini-2.5-flash-image"
	}
	return &Client{settings: settings}, nil
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string                 `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]interface{} `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, model string, request generateRequest) (*generateResponse, error) {
	ctx, span := tracing.NewSpan("gemini.generate", ctx)
	defer span.End()
	span.SetAttributes(attribute.String("model", model))

	body, _ := json.Marshal(request)
	url := fmt.Sprintf("%s/%s:generateContent", baseURL, model)

	req, _ := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("x-goog-api-key", c.settings.APIKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failure calling Gemini")
		log.Error().Err(err).Msgf("Failed to call %s", model)
		return nil, fmt.Errorf("failure calling gemini (%s)", model)
	}
	defer resp.Body.Close()

	resp_bytes, _ := io.ReadAll(resp.Body)
	log.Trace().Msgf("Gemini response: %s", string(resp_bytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, fmt.Sprintf("Failure StatusCode from Gemini: %d", resp.StatusCode))
		log.Error().Msgf("Failed StatusCode from Gemini (%s): %d", model, resp.StatusCode)
		return nil, fmt.Errorf("gemini statuscode %d", resp.StatusCode)
	}

	var response generateResponse
	if err := json.Unmarshal(resp_bytes, &response); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failure parsing Gemini response")
		log.Error().Err(err).Msg("Failure parsing Gemini response")
		return nil, fmt.Errorf("failure parsing gemini response")
	}
	return &response, nil
}

func (r *generateResponse) text() string {
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

// Categorize returns a one-word category for a transaction description.
// An empty result means the caller should fall back to the sentinel.
func (c *Client) Categorize(ctx context.Context, description string) (string, error) {
	prompt := fmt.Sprintf("Categoriza en una palabra: %q. Ej: Comida, Ocio, Salud, Transporte, Entretenimiento, Educacion, Ropa, Hogar, Otros.", description)
	resp, err := c.generate(ctx, c.settings.Model, generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.text()), nil
}

type Receipt struct {
	Total    float64 `json:"total"`
	Date     string  `json:"date"`
	Merchant string  `json:"merchant"`
	Category string  `json:"category"`
}

// AnalyzeReceipt extracts structured data from a base64 JPEG. Missing
// fields are left zero; the call site applies defaults.
func (c *Client) AnalyzeReceipt(ctx context.Context, b64image string) (Receipt, error) {
	resp, err := c.generate(ctx, c.settings.Model, generateRequest{
		Contents: []content{{Role: "user", Parts: []part{
			{InlineData: &inlineData{MimeType: "image/jpeg", Data: b64image}},
			{Text: "Analiza el recibo. Extrae: total (número), date (YYYY-MM-DD), merchant (nombre), category (una palabra)."},
		}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: map[string]interface{}{
				"type": "OBJECT",
				"properties": map[string]interface{}{
					"total":    map[string]interface{}{"type": "NUMBER"},
					"date":     map[string]interface{}{"type": "STRING"},
					"merchant": map[string]interface{}{"type": "STRING"},
					"category": map[string]interface{}{"type": "STRING"},
				},
			},
		},
	})
	if err != nil {
		return Receipt{}, err
	}

	var receipt Receipt
	if err := json.Unmarshal([]byte(resp.text()), &receipt); err != nil {
		log.Error().Err(err).Msg("Failure parsing receipt data")
		return Receipt{}, fmt.Errorf("failure parsing receipt data")
	}
	return receipt, nil
}

type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Advise answers one chat turn of the financial assistant.
func (c *Client) Advise(ctx context.Context, history []Message, message string) (string, error) {
	contents := make([]content, 0, len(history)+1)
	for _, h := range history {
		role := "model"
		if h.Role == "user" {
			role = "user"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: h.Text}}})
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: message}}})

	resp, err := c.generate(ctx, c.settings.ChatModel, generateRequest{
		Contents:          contents,
		SystemInstruction: &content{Parts: []part{{Text: "Eres un asesor financiero de alto nivel. Sé elegante, breve y muy útil."}}},
	})
	if err != nil {
		return "", err
	}
	return resp.text(), nil
}

// GenerateGoalImage renders a goal visualization and returns it as a
// data URL ready for the UI.
func (c *Client) GenerateGoalImage(ctx context.Context, prompt string) (string, error) {
	resp, err := c.generate(ctx, c.settings.ImageModel, generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil {
				return "data:image/png;base64," + p.InlineData.Data, nil
			}
		}
	}
	return "", errors.New("no image returned")
}
