package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vikify/resolver/internal/shared"
	tu "github.com/vikify/resolver/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com", customClient)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Nil Client", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)

			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Sends Query And Headers", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if got := r.URL.Query().Get("q"); got != "a b" {
					t.Errorf("expected q 'a b', got %q", got)
				}
				if got := r.Header.Get("X-Auth-File"); got != "browser.json" {
					t.Errorf("expected X-Auth-File header, got %q", got)
				}
				if got := r.Header.Get("User-Agent"); got != defaultUserAgent {
					t.Errorf("expected User-Agent %q, got %q", defaultUserAgent, got)
				}
				json.NewEncoder(w).Encode(map[string]string{"status": "success"})
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			srv.SetHeader("X-Auth-File", "browser.json")

			resp, err := srv.Get(context.Background(), "/test", map[string][]string{"q": {"a b"}})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !resp.OK() {
				t.Errorf("expected 2xx, got %d", resp.StatusCode)
			}

			var body map[string]string
			if err := resp.Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != "success" {
				t.Errorf("unexpected body %v", body)
			}
		})

		t.Run("Transport Error", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
			srv := NewAPIService("http://example.com", client)

			_, err := srv.Get(context.Background(), "/test", nil)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Body Read Error", func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}, Header: http.Header{}}
			client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
			srv := NewAPIService("http://example.com", client)

			if _, err := srv.Get(context.Background(), "/test", nil); err == nil {
				t.Error("expected read error")
			}
		})
	})

	t.Run("Post", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST method, got %s", r.Method)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %s", ct)
			}
			data, _ := io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
			w.Write(data)
		}))
		defer server.Close()

		srv := NewAPIService(server.URL, nil)
		resp, err := srv.Post(context.Background(), "/echo", map[string]int{"n": 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusCreated {
			t.Errorf("expected 201, got %d", resp.StatusCode)
		}
		if string(resp.Body) != `{"n":1}` {
			t.Errorf("unexpected echo %s", resp.Body)
		}
	})

	t.Run("GetJSON", func(t *testing.T) {
		t.Run("Error Detail", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(tu.JSONResponse(http.StatusBadGateway, `{"detail":"upstream down"}`), nil)}
			srv := NewAPIService("http://example.com", client)

			var out any
			err := srv.GetJSON(context.Background(), "/x", nil, &out)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Fatalf("expected ErrAPIRequest, got %v", err)
			}
			if got := err.Error(); got != "API request failed: status 502: upstream down" {
				t.Errorf("unexpected message %q", got)
			}
		})

		t.Run("Invalid JSON", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(tu.JSONResponse(http.StatusOK, `not json`), nil)}
			srv := NewAPIService("http://example.com", client)

			var out map[string]any
			if err := srv.GetJSON(context.Background(), "/x", nil, &out); err == nil {
				t.Error("expected decode error")
			}
		})
	})
}
