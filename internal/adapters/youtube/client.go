// Package youtube resolves channels and lists recent uploads through the
// YouTube Data API v3 search endpoint.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/domain/model"
	apperrors "github.com/target/title-doctor/internal/errors"
)

const (
	apiKeyEnv        = "YOUTUBE_API_KEY"
	watchURLPrefix   = "https://www.youtube.com/watch?v="
	channelNotFound  = "Channel not found"
	maxErrorBodySize = 4096
)

var (
	_ core.ChannelResolver = (*Client)(nil)
	_ core.VideoLister     = (*Client)(nil)
)

// Options configures a Client.
type Options struct {
	Config     config.YouTubeConfig
	HTTPClient *http.Client // Optional: defaults to a client with Config.Timeout
	Logger     *slog.Logger
}

// Client calls the YouTube Data API. The API key is checked per call so a
// missing credential fails the job instead of the process.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient builds a YouTube client from opts.
func NewClient(opts Options) *Client {
	cfg := opts.Config
	cfg.Sanitize()

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger.With("component", "youtube"),
	}
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		ChannelID   string    `json:"channelId"`
		Title       string    `json:"title"`
		PublishedAt time.Time `json:"publishedAt"`
		Thumbnails  struct {
			Default struct {
				URL string `json:"url"`
			} `json:"default"`
		} `json:"thumbnails"`
	} `json:"snippet"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ResolveChannel looks up a channel by handle or name. A leading "@" is
// stripped and the first search hit wins.
func (c *Client) ResolveChannel(ctx context.Context, ref string) (model.Channel, error) {
	query := strings.TrimPrefix(strings.TrimSpace(ref), "@")

	var res searchResponse
	err := c.search(ctx, url.Values{
		"part":       {"snippet"},
		"type":       {"channel"},
		"q":          {query},
		"maxResults": {"1"},
	}, &res)
	if err != nil {
		return model.Channel{}, err
	}

	if len(res.Items) == 0 || res.Items[0].Snippet.ChannelID == "" {
		return model.Channel{}, apperrors.EmptyResult(channelNotFound)
	}
	item := res.Items[0]
	c.logger.DebugContext(ctx, "channel resolved", "ref", ref, "channel_id", item.Snippet.ChannelID)
	return model.Channel{ID: item.Snippet.ChannelID, Name: item.Snippet.Title}, nil
}

// LatestVideos returns up to limit of the channel's newest videos.
func (c *Client) LatestVideos(ctx context.Context, channelID string, limit int) ([]model.Video, error) {
	var res searchResponse
	err := c.search(ctx, url.Values{
		"part":       {"snippet"},
		"channelId":  {channelID},
		"order":      {"date"},
		"type":       {"video"},
		"maxResults": {strconv.Itoa(limit)},
	}, &res)
	if err != nil {
		return nil, err
	}

	videos := make([]model.Video, 0, len(res.Items))
	for _, item := range res.Items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, model.Video{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			URL:         watchURLPrefix + item.ID.VideoID,
			PublishedAt: item.Snippet.PublishedAt,
			Thumbnail:   item.Snippet.Thumbnails.Default.URL,
		})
	}
	return videos, nil
}

func (c *Client) search(ctx context.Context, params url.Values, out any) error {
	if c.apiKey == "" {
		return apperrors.MissingCredential(apiKeyEnv)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("youtube rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "create youtube request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUpstream, "youtube request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.Upstreamf("youtube search %s: %s", resp.Status, readErrorMessage(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUpstream, "decode youtube response")
	}
	return nil
}

// readErrorMessage extracts the Google API error message, falling back to the raw body.
func readErrorMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	var e errorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
