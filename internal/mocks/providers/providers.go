// Package providers contains hand-written test doubles for the provider
// ports. Each double delegates to its Func field when set and otherwise
// returns deterministic canned data.
package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/domain/model"
)

// Ensure compile-time conformance to ports.
var (
	_ core.ChannelResolver = (*ChannelResolver)(nil)
	_ core.VideoLister     = (*VideoLister)(nil)
	_ core.TitleGenerator  = (*TitleGenerator)(nil)
	_ core.Mailer          = (*Mailer)(nil)
)

// ChannelResolver resolves every reference to a channel named after it.
type ChannelResolver struct {
	ResolveFunc func(ctx context.Context, ref string) (model.Channel, error)

	mu    sync.Mutex
	calls []string
}

// ResolveChannel implements core.ChannelResolver.
func (r *ChannelResolver) ResolveChannel(ctx context.Context, ref string) (model.Channel, error) {
	r.mu.Lock()
	r.calls = append(r.calls, ref)
	r.mu.Unlock()

	if r.ResolveFunc != nil {
		return r.ResolveFunc(ctx, ref)
	}
	name := strings.TrimPrefix(ref, "@")
	return model.Channel{ID: "UC-" + name, Name: name}, nil
}

// Calls returns the references resolved so far.
func (r *ChannelResolver) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// VideoLister returns limit synthetic videos for any channel.
type VideoLister struct {
	LatestFunc func(ctx context.Context, channelID string, limit int) ([]model.Video, error)
}

// LatestVideos implements core.VideoLister.
func (l *VideoLister) LatestVideos(ctx context.Context, channelID string, limit int) ([]model.Video, error) {
	if l.LatestFunc != nil {
		return l.LatestFunc(ctx, channelID, limit)
	}
	videos := make([]model.Video, 0, limit)
	for i := range limit {
		id := fmt.Sprintf("%s-v%d", channelID, i+1)
		videos = append(videos, model.Video{
			ID:    id,
			Title: fmt.Sprintf("Video %d", i+1),
			URL:   "https://www.youtube.com/watch?v=" + id,
		})
	}
	return videos, nil
}

// TitleGenerator prefixes every title with "Improved: ".
type TitleGenerator struct {
	ImproveFunc func(ctx context.Context, channelName string, videos []model.Video) ([]model.ImprovedTitle, error)
}

// ImproveTitles implements core.TitleGenerator.
func (g *TitleGenerator) ImproveTitles(
	ctx context.Context,
	channelName string,
	videos []model.Video,
) ([]model.ImprovedTitle, error) {
	if g.ImproveFunc != nil {
		return g.ImproveFunc(ctx, channelName, videos)
	}
	titles := make([]model.ImprovedTitle, 0, len(videos))
	for _, v := range videos {
		titles = append(titles, model.ImprovedTitle{
			Original:  v.Title,
			Improved:  "Improved: " + v.Title,
			Rationale: "clearer hook",
			URL:       v.URL,
		})
	}
	return titles, nil
}

// Mailer records every email and returns sequential ids "email-1", "email-2", ...
type Mailer struct {
	SendFunc func(ctx context.Context, email core.Email) (string, error)

	mu   sync.Mutex
	sent []core.Email
}

// Send implements core.Mailer. Emails are recorded even when SendFunc fails.
func (m *Mailer) Send(ctx context.Context, email core.Email) (string, error) {
	m.mu.Lock()
	m.sent = append(m.sent, email)
	n := len(m.sent)
	m.mu.Unlock()

	if m.SendFunc != nil {
		return m.SendFunc(ctx, email)
	}
	return fmt.Sprintf("email-%d", n), nil
}

// Sent returns the recorded emails.
func (m *Mailer) Sent() []core.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Email(nil), m.sent...)
}
