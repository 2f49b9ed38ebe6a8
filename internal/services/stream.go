package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/shared"
)

const defaultStreamBaseURL = "http://localhost:5000"

// StreamResponse is the backend's answer to GET /stream/{id}.
type StreamResponse struct {
	Success   bool    `json:"success"`
	URL       string  `json:"url"`
	Source    string  `json:"source"`
	TimeTaken seconds `json:"time_taken"`
	Cached    bool    `json:"cached"`
	Error     string  `json:"error"`
}

// PreloadResponse is the backend's answer to POST /stream/preload.
type PreloadResponse struct {
	Success bool   `json:"success"`
	Cached  bool   `json:"cached"`
	Error   string `json:"error"`
}

// seconds accepts time_taken as either a JSON number or a numeric string.
type seconds float64

func (s *seconds) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*s = seconds(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		*s = seconds(f)
	}
	return nil
}

// StreamService is the client for the stream-resolution backend.
type StreamService struct {
	api *APIService
}

// NewStreamService creates a stream backend client. An empty baseURL uses http://localhost:5000.
func NewStreamService(baseURL string, client *http.Client) *StreamService {
	if baseURL == "" {
		baseURL = defaultStreamBaseURL
	}
	return &StreamService{api: NewAPIService(baseURL, client)}
}

// Name returns the service name.
func (s *StreamService) Name() string {
	return "Stream Backend"
}

// FetchStream calls GET /stream/{id}?title=&artist=.
//
// A non-2xx status, success=false, or a missing url is an error wrapping [shared.ErrServiceUnavailable].
func (s *StreamService) FetchStream(ctx context.Context, track models.TrackRef) (*StreamResponse, error) {
	if track.ID == "" {
		return nil, fmt.Errorf("%w: song id is required", shared.ErrMissingArgument)
	}

	query := url.Values{}
	query.Set("title", track.Title)
	query.Set("artist", track.Artist)

	resp, err := s.api.Get(ctx, "/stream/"+url.PathEscape(track.ID), query)
	if err != nil {
		return nil, err
	}

	var out StreamResponse
	if !resp.OK() {
		_ = resp.Decode(&out)
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrServiceUnavailable, resp.StatusCode, out.Error)
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if !out.Success || out.URL == "" {
		msg := out.Error
		if msg == "" {
			msg = "failed to get stream URL"
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, msg)
	}
	return &out, nil
}

// Preload calls POST /stream/preload with {songId, title, artist}.
func (s *StreamService) Preload(ctx context.Context, track models.TrackRef) (*PreloadResponse, error) {
	if track.ID == "" {
		return nil, fmt.Errorf("%w: song id is required", shared.ErrMissingArgument)
	}

	payload := struct {
		SongID string `json:"songId"`
		Title  string `json:"title"`
		Artist string `json:"artist"`
	}{track.ID, track.Title, track.Artist}

	resp, err := s.api.Post(ctx, "/stream/preload", payload)
	if err != nil {
		return nil, err
	}

	var out PreloadResponse
	if !resp.OK() {
		return nil, fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("%w: preload rejected: %s", shared.ErrServiceUnavailable, out.Error)
	}
	return &out, nil
}
