// Package gemini generates improved video titles with the Gemini
// generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/time/rate"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/domain/model"
	apperrors "github.com/target/title-doctor/internal/errors"
)

const (
	apiKeyEnv        = "GEMINI_API_KEY"
	maxErrorBodySize = 4096
)

var _ core.TitleGenerator = (*Client)(nil)

// Options configures a Client.
type Options struct {
	Config     config.GeminiConfig
	HTTPClient *http.Client // Optional: defaults to a client with Config.Timeout
	Logger     *slog.Logger
}

// Client calls Gemini and parses its JSON answer into improved titles.
type Client struct {
	endpoint    string
	apiKey      string
	temperature float64
	textPath    string
	http        *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewClient builds a Gemini client. It fails only when the response text
// path is not a valid JMESPath expression.
func NewClient(opts Options) (*Client, error) {
	cfg := opts.Config
	cfg.Sanitize()

	if _, err := jmespath.Compile(cfg.ResponseTextPath); err != nil {
		return nil, fmt.Errorf("compile gemini response path %q: %w", cfg.ResponseTextPath, err)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:    fmt.Sprintf("%s/models/%s:generateContent", cfg.BaseURL, url.PathEscape(cfg.Model)),
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		textPath:    cfg.ResponseTextPath,
		http:        hc,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:      logger.With("component", "gemini"),
	}, nil
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

// titlesAnswer is the JSON document the prompt asks the model to return.
type titlesAnswer struct {
	Titles []struct {
		Original  string `json:"original"`
		Improved  string `json:"improved"`
		Rationale string `json:"rationale"`
	} `json:"titles"`
}

// ImproveTitles returns one improved title per video, in input order. URLs
// are joined from videos by index.
func (c *Client) ImproveTitles(ctx context.Context, channelName string, videos []model.Video) ([]model.ImprovedTitle, error) {
	if c.apiKey == "" {
		return nil, apperrors.MissingCredential(apiKeyEnv)
	}
	if len(videos) == 0 {
		return nil, nil
	}

	text, err := c.generate(ctx, buildPrompt(channelName, videos))
	if err != nil {
		return nil, err
	}

	var answer titlesAnswer
	if err := json.Unmarshal([]byte(text), &answer); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "parse gemini titles")
	}
	if len(answer.Titles) != len(videos) {
		return nil, apperrors.Upstreamf("expected %d improved titles, got %d", len(videos), len(answer.Titles))
	}

	titles := make([]model.ImprovedTitle, len(videos))
	for i, t := range answer.Titles {
		titles[i] = model.ImprovedTitle{
			Original:  t.Original,
			Improved:  t.Improved,
			Rationale: t.Rationale,
			URL:       videos[i].URL,
		}
		if titles[i].Original == "" {
			titles[i].Original = videos[i].Title
		}
	}

	c.logger.InfoContext(ctx, "generated improved titles", "channel", channelName, "count", len(titles))
	return titles, nil
}

// generate posts prompt and returns the text selected by the response path.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("gemini rate limit wait: %w", err)
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      c.temperature,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode gemini request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "create gemini request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeUpstream, "gemini request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.Upstreamf("Gemini API Error: %s", readErrorMessage(resp.Body))
	}

	var doc any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeUpstream, "decode gemini response")
	}

	selected, err := jmespath.Search(c.textPath, doc)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeUpstream, "select gemini response text")
	}
	text, ok := selected.(string)
	if !ok || strings.TrimSpace(text) == "" {
		return "", apperrors.Upstreamf("gemini response has no text at %s", c.textPath)
	}
	return text, nil
}

func buildPrompt(channelName string, videos []model.Video) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a YouTube title optimization expert. Below are %d video titles from channel %q.\n", len(videos), channelName)
	b.WriteString(`For each title, provide:
1. An improved version that is more engaging, SEO friendly and likely to get more clicks.
2. A brief rationale (1-2 sentences) explaining why the improved title is better.

Guidelines:
- Keep the core topic and authenticity
- Use action verbs, numbers and specific value propositions
- Make it curiosity-inducing without being clickbait
- Optimize for searchability and clarity

Video Titles:
`)
	for i, v := range videos {
		fmt.Fprintf(&b, "%d. %q\n", i+1, v.Title)
	}
	b.WriteString(`
Respond in JSON format, with one entry per title in the same order:
{"titles": [{"original": "...", "improved": "...", "rationale": "..."}]}`)
	return b.String()
}

func readErrorMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return "Unknown AI Error"
}
