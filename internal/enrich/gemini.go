package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// Sentinels stored in place of model output when a call fails. The pipeline
// does not distinguish degraded output from good output; visibility comes
// from logs.
const (
	SentinelCallFailed    = "API 호출 중 오류 발생"
	SentinelEmptyResponse = "GEMINI API error"
)

// Config holds Gemini client configuration.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration

	// Endpoint overrides the API base URL, used in tests.
	Endpoint string
}

// GeminiClient calls the Gemini generateContent API. A missing API key
// degrades every call to a sentinel string instead of failing the process.
type GeminiClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGeminiClient builds a client from configuration.
func NewGeminiClient(cfg Config, logger *slog.Logger) *GeminiClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &GeminiClient{
		endpoint: endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "gemini"),
	}
}

// Summarize produces a detailed Korean summary in declarative sentences.
func (c *GeminiClient) Summarize(ctx context.Context, body string) string {
	prompt := body + " Summarize the following text in detail in Korean using declarative sentences only."
	return c.generate(ctx, prompt)
}

// ExtractTags produces a comma-separated keyword list for the article.
func (c *GeminiClient) ExtractTags(ctx context.Context, body string) string {
	prompt := fmt.Sprintf("이 뉴스 기사에서 관련된 키워드 5개를 추출하세요. 콤마로 구분된 키워드만 출력하세요: %s", body)
	return c.generate(ctx, prompt)
}

// GenerateTitle produces a Korean headline when the scraped heading is not
// trusted.
func (c *GeminiClient) GenerateTitle(ctx context.Context, body string) string {
	prompt := body + " Generate only the title based on the following news article content. in korean"
	return c.generate(ctx, prompt)
}

// Answer responds to a reader's question about one stored article, grounded
// on its title and content.
func (c *GeminiClient) Answer(ctx context.Context, title, articleContent, question string) string {
	prompt := fmt.Sprintf(
		"다음 뉴스 내용을 참고해서 사용자의 질문에 답변해줘.\n\n뉴스 제목: %s\n뉴스 내용: %s\n\n사용자 질문: %s\n답변:",
		title, articleContent, question,
	)
	return c.generate(ctx, prompt)
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) generate(ctx context.Context, prompt string) string {
	text, err := c.doGenerate(ctx, prompt)
	if err != nil {
		c.logger.Error("generate content failed", "error", err)
		return SentinelCallFailed
	}
	if text == "" {
		return SentinelEmptyResponse
	}
	return text
}

func (c *GeminiClient) doGenerate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("api key not configured")
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}

	return strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text), nil
}
