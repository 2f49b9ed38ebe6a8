// KuGou lyrics client
package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vikify/resolver/internal/shared"
)

const (
	defaultKuGouSearchURL = "https://mobileservice.kugou.com"
	defaultKuGouLyricsURL = "https://lyrics.kugou.com"
	// kuGouDurationTolerance is how far, in seconds, a song may drift from the requested duration.
	kuGouDurationTolerance = 8
	kuGouPageSize          = 8
)

// KuGouSong is a song search hit.
type KuGouSong struct {
	Hash       string `json:"hash"`
	SongName   string `json:"songname"`
	SingerName string `json:"singername"`
	Duration   int    `json:"duration"`
}

// KuGouCandidate is a lyrics candidate. Duration is in milliseconds.
type KuGouCandidate struct {
	ID        string `json:"id"`
	AccessKey string `json:"accesskey"`
	Duration  int    `json:"duration"`
}

// KuGouService looks up lyrics in two steps: song search, then lyric candidate search and download.
type KuGouService struct {
	search *APIService
	lyrics *APIService
}

// NewKuGouService creates a KuGou client. Empty URLs use the public endpoints.
func NewKuGouService(searchURL, lyricsURL string, client *http.Client) *KuGouService {
	if searchURL == "" {
		searchURL = defaultKuGouSearchURL
	}
	if lyricsURL == "" {
		lyricsURL = defaultKuGouLyricsURL
	}
	return &KuGouService{
		search: NewAPIService(searchURL, client),
		lyrics: NewAPIService(lyricsURL, client),
	}
}

// Name returns the service name.
func (k *KuGouService) Name() string {
	return "Kugou"
}

// SearchSongs returns up to one page of song hits for keyword.
func (k *KuGouService) SearchSongs(ctx context.Context, keyword string) ([]KuGouSong, error) {
	params := url.Values{}
	params.Set("version", "9108")
	params.Set("plat", "0")
	params.Set("pagesize", strconv.Itoa(kuGouPageSize))
	params.Set("showtype", "0")
	params.Set("keyword", keyword)

	var out struct {
		Data struct {
			Info []KuGouSong `json:"info"`
		} `json:"data"`
	}
	if err := k.search.GetJSON(ctx, "/api/v3/search/song", params, &out); err != nil {
		return nil, err
	}
	return out.Data.Info, nil
}

// SearchLyrics lists lyric candidates for a song hash, or for a keyword when hash is empty.
func (k *KuGouService) SearchLyrics(ctx context.Context, hash, keyword string, durationSec int) ([]KuGouCandidate, error) {
	params := url.Values{}
	params.Set("ver", "1")
	params.Set("man", "yes")
	if hash != "" {
		params.Set("client", "pc")
		params.Set("hash", hash)
	} else {
		params.Set("client", "mobi")
		params.Set("keyword", keyword)
	}
	if durationSec > 0 {
		params.Set("duration", strconv.Itoa(durationSec*1000))
	}

	var out struct {
		Candidates []KuGouCandidate `json:"candidates"`
	}
	if err := k.lyrics.GetJSON(ctx, "/search", params, &out); err != nil {
		return nil, err
	}
	return out.Candidates, nil
}

// Download fetches a candidate's LRC text.
func (k *KuGouService) Download(ctx context.Context, c KuGouCandidate) (string, error) {
	params := url.Values{}
	params.Set("fmt", "lrc")
	params.Set("charset", "utf8")
	params.Set("client", "pc")
	params.Set("ver", "1")
	params.Set("id", c.ID)
	params.Set("accesskey", c.AccessKey)

	var out struct {
		Content string `json:"content"`
	}
	if err := k.lyrics.GetJSON(ctx, "/download", params, &out); err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(out.Content)
	if err != nil {
		return "", fmt.Errorf("%w: kugou content: %v", shared.ErrAPIRequest, err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("%w: kugou returned empty lyrics", shared.ErrLyricsUnavailable)
	}
	return text, nil
}

// Candidates gathers lyric candidates for every song hit within duration tolerance,
// then falls back to a keyword search.
func (k *KuGouService) Candidates(ctx context.Context, title, artist string, durationSec int) ([]KuGouCandidate, error) {
	keyword := kuGouKeyword(title, artist)
	songs, err := k.SearchSongs(ctx, keyword)
	if err != nil {
		return nil, err
	}

	var all []KuGouCandidate
	seen := make(map[string]bool)
	add := func(cs []KuGouCandidate) {
		for _, c := range cs {
			if !seen[c.ID] {
				seen[c.ID] = true
				all = append(all, c)
			}
		}
	}

	for _, s := range songs {
		if durationSec > 0 && absInt(s.Duration-durationSec) > kuGouDurationTolerance {
			continue
		}
		cs, err := k.SearchLyrics(ctx, s.Hash, "", durationSec)
		if err != nil {
			return nil, err
		}
		add(cs)
	}

	cs, err := k.SearchLyrics(ctx, "", keyword, durationSec)
	if err != nil {
		return nil, err
	}
	add(cs)
	return all, nil
}

// Lyrics downloads the first candidate.
func (k *KuGouService) Lyrics(ctx context.Context, title, artist string, durationSec int) (string, error) {
	cands, err := k.Candidates(ctx, title, artist, durationSec)
	if err != nil {
		return "", err
	}
	if len(cands) == 0 {
		return "", fmt.Errorf("%w: kugou has no candidates for %s - %s", shared.ErrLyricsUnavailable, artist, title)
	}
	return k.Download(ctx, cands[0])
}

// AllLyrics downloads every candidate and invokes callback for each successful download.
func (k *KuGouService) AllLyrics(ctx context.Context, title, artist string, durationSec int, callback func(string)) error {
	cands, err := k.Candidates(ctx, title, artist, durationSec)
	if err != nil {
		return err
	}
	for _, c := range cands {
		text, err := k.Download(ctx, c)
		if err != nil {
			continue
		}
		callback(text)
	}
	return nil
}

func kuGouKeyword(title, artist string) string {
	return strings.TrimSpace(title + " - " + artist)
}
