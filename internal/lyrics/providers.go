package lyrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vikify/resolver/internal/lrc"
	"github.com/vikify/resolver/internal/retry"
	"github.com/vikify/resolver/internal/services"
	"github.com/vikify/resolver/internal/shared"
)

// Provider is a remote lyric source.
//
// id is the catalog track id; title, artist and durationSec drive fuzzy sources.
type Provider interface {
	Name() string
	IsEnabled() bool
	GetLyrics(ctx context.Context, id, title, artist string, durationSec int) (string, error)
	GetAllLyrics(ctx context.Context, id, title, artist string, durationSec int, callback func(string)) error
}

// toggle carries the enabled flag and retry policy every provider shares.
type toggle struct {
	enabled bool
	policy  retry.Policy
}

func newToggle(enabled bool, policy retry.Policy) toggle {
	policy.Permanent = func(err error) bool {
		return errors.Is(err, shared.ErrLyricsUnavailable)
	}
	return toggle{enabled: enabled, policy: policy}
}

func (t toggle) IsEnabled() bool { return t.enabled }

func requireID(id, provider string) error {
	if id == "" {
		return fmt.Errorf("%w: %s needs a catalog id", shared.ErrLyricsUnavailable, provider)
	}
	return nil
}

// YouTubeProvider returns catalog-native lyrics by video id.
type YouTubeProvider struct {
	toggle
	svc *services.YouTubeService
}

func NewYouTubeProvider(svc *services.YouTubeService, enabled bool, policy retry.Policy) *YouTubeProvider {
	return &YouTubeProvider{toggle: newToggle(enabled, policy), svc: svc}
}

func (p *YouTubeProvider) Name() string { return "YouTube Music" }

func (p *YouTubeProvider) GetLyrics(ctx context.Context, id, _, _ string, _ int) (string, error) {
	if err := requireID(id, p.Name()); err != nil {
		return "", err
	}
	out, err := retry.Do(ctx, p.policy, "youtube lyrics", func(ctx context.Context) (*services.YouTubeLyrics, error) {
		return p.svc.Lyrics(ctx, id)
	})
	if err != nil {
		return "", err
	}
	return out.Lyrics, nil
}

func (p *YouTubeProvider) GetAllLyrics(ctx context.Context, id, title, artist string, durationSec int, callback func(string)) error {
	text, err := p.GetLyrics(ctx, id, title, artist, durationSec)
	if err != nil {
		return err
	}
	callback(text)
	return nil
}

// SubtitleProvider turns timed captions into LRC lyrics.
type SubtitleProvider struct {
	toggle
	svc *services.YouTubeService
}

func NewSubtitleProvider(svc *services.YouTubeService, enabled bool, policy retry.Policy) *SubtitleProvider {
	return &SubtitleProvider{toggle: newToggle(enabled, policy), svc: svc}
}

func (p *SubtitleProvider) Name() string { return "YouTube Subtitle" }

func (p *SubtitleProvider) GetLyrics(ctx context.Context, id, _, _ string, _ int) (string, error) {
	if err := requireID(id, p.Name()); err != nil {
		return "", err
	}
	cues, err := retry.Do(ctx, p.policy, "youtube subtitles", func(ctx context.Context) ([]services.Subtitle, error) {
		return p.svc.Subtitles(ctx, id)
	})
	if err != nil {
		return "", err
	}
	return SubtitlesToLRC(cues), nil
}

func (p *SubtitleProvider) GetAllLyrics(ctx context.Context, id, title, artist string, durationSec int, callback func(string)) error {
	text, err := p.GetLyrics(ctx, id, title, artist, durationSec)
	if err != nil {
		return err
	}
	callback(text)
	return nil
}

// SubtitlesToLRC renders caption cues as synced LRC, one line per non-empty cue.
func SubtitlesToLRC(cues []services.Subtitle) string {
	doc := lrc.Lyrics{Synced: true}
	for _, c := range cues {
		if c.Text == "" {
			continue
		}
		doc.Lines = append(doc.Lines, lrc.Line{
			Time: time.Duration(c.Start * float64(time.Second)),
			Text: c.Text,
		})
	}
	return lrc.Format(doc)
}

// LrcLibProvider searches LrcLib by title and artist.
type LrcLibProvider struct {
	toggle
	svc *services.LrcLibService
}

func NewLrcLibProvider(svc *services.LrcLibService, enabled bool, policy retry.Policy) *LrcLibProvider {
	return &LrcLibProvider{toggle: newToggle(enabled, policy), svc: svc}
}

func (p *LrcLibProvider) Name() string { return "LrcLib" }

func (p *LrcLibProvider) GetLyrics(ctx context.Context, _, title, artist string, durationSec int) (string, error) {
	return retry.Do(ctx, p.policy, "lrclib lyrics", func(ctx context.Context) (string, error) {
		return p.svc.Lyrics(ctx, title, artist, durationSec)
	})
}

func (p *LrcLibProvider) GetAllLyrics(ctx context.Context, _, title, artist string, durationSec int, callback func(string)) error {
	return p.svc.AllLyrics(ctx, title, artist, durationSec, callback)
}

// KuGouProvider searches KuGou by title and artist. Disabled by default.
type KuGouProvider struct {
	toggle
	svc *services.KuGouService
}

func NewKuGouProvider(svc *services.KuGouService, enabled bool, policy retry.Policy) *KuGouProvider {
	return &KuGouProvider{toggle: newToggle(enabled, policy), svc: svc}
}

func (p *KuGouProvider) Name() string { return "Kugou" }

func (p *KuGouProvider) GetLyrics(ctx context.Context, _, title, artist string, durationSec int) (string, error) {
	return retry.Do(ctx, p.policy, "kugou lyrics", func(ctx context.Context) (string, error) {
		return p.svc.Lyrics(ctx, title, artist, durationSec)
	})
}

func (p *KuGouProvider) GetAllLyrics(ctx context.Context, _, title, artist string, durationSec int, callback func(string)) error {
	return p.svc.AllLyrics(ctx, title, artist, durationSec, callback)
}

// Clients groups the HTTP clients the default providers wrap.
type Clients struct {
	YouTube *services.YouTubeService
	LrcLib  *services.LrcLibService
	KuGou   *services.KuGouService
}

// DefaultProviders returns the fixed provider order: id-based sources first, fuzzy sources last.
func DefaultProviders(cfg shared.LyricsConfig, c Clients, policy retry.Policy) []Provider {
	return []Provider{
		NewYouTubeProvider(c.YouTube, cfg.YouTube, policy),
		NewSubtitleProvider(c.YouTube, cfg.Subtitles, policy),
		NewLrcLibProvider(c.LrcLib, cfg.LrcLib, policy),
		NewKuGouProvider(c.KuGou, cfg.KuGou, policy),
	}
}
