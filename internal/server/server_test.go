package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap/zaptest"

	"github.com/pders01/texmath/internal/cache"
	"github.com/pders01/texmath/internal/models"
	"github.com/pders01/texmath/internal/render"
	"github.com/pders01/texmath/internal/testutil"
)

func newTestServer(t *testing.T) (*httptest.Server, *testutil.FakeTools) {
	t.Helper()
	return newTimedTestServer(t, 0, nil)
}

func newTimedTestServer(t *testing.T, timeout time.Duration, gate chan struct{}) (*httptest.Server, *testutil.FakeTools) {
	t.Helper()

	tools := testutil.NewFakeTools()
	tools.FailOn = `\frac{1`
	tools.Gate = gate

	cfg := render.DefaultConfig()
	cfg.TempDir = t.TempDir()

	h := &Handler{
		Renderer: render.New(cfg, tools, nil),
		Files:    cache.NewDirStore(afero.NewOsFs(), t.TempDir(), ""),
		MaxBody:  1024,
		Timeout:  timeout,
	}

	srv := httptest.NewServer(NewRouter(h, zaptest.NewLogger(t)))
	t.Cleanup(srv.Close)
	return srv, tools
}

func postRender(t *testing.T, srv *httptest.Server, body string) (*http.Response, renderResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/render", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var out renderResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp, out
}

func TestRenderEndpoint(t *testing.T) {
	srv, tools := newTestServer(t)

	resp, first := postRender(t, srv, `{"expression": "x^2"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	wantID := models.NewMathSource("x^2", 120, false).Identity()
	if first.Identity != wantID {
		t.Errorf("expected identity %s, got %s", wantID, first.Identity)
	}
	if first.File != wantID+"_7_.png" {
		t.Errorf("unexpected file: %s", first.File)
	}
	if first.Baseline != 7 || first.Cached {
		t.Errorf("unexpected response: %+v", first)
	}

	_, second := postRender(t, srv, `{"expression": "x^2"}`)
	if !second.Cached || second.File != first.File {
		t.Errorf("expected cached repeat, got %+v", second)
	}
	if n := tools.Count("latex"); n != 1 {
		t.Errorf("expected one latex run, got %d", n)
	}

	img, err := http.Get(srv.URL + first.URL)
	if err != nil {
		t.Fatalf("image request failed: %v", err)
	}
	defer img.Body.Close()
	if img.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for image, got %d", img.StatusCode)
	}
	if _, err := png.DecodeConfig(img.Body); err != nil {
		t.Errorf("served image is not a png: %v", err)
	}
}

func TestRenderQueryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	q := url.Values{"tex": {"x"}, "dpi": {"300"}, "display": {"true"}}
	resp, err := http.Get(srv.URL + "/v1/render?" + q.Encode())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if want := models.NewMathSource("x", 300, true).Identity(); out.Identity != want {
		t.Errorf("query parameters not applied: got %s, want %s", out.Identity, want)
	}

	bad, err := http.Get(srv.URL + "/v1/render?tex=x&dpi=lots")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad dpi, got %d", bad.StatusCode)
	}
}

func TestRenderEndpointErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{"expression":`, http.StatusBadRequest},
		{"empty expression", `{"expression": ""}`, http.StatusBadRequest},
		{"typeset failure", `{"expression": "\\frac{1"}`, http.StatusUnprocessableEntity},
		{"body too large", `{"expression": "` + string(bytes.Repeat([]byte("x"), 2048)) + `"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postRender(t, srv, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestImageEndpointRejectsUnknownNames(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, name := range []string{"notes.txt", models.NewMathSource("x", 120, false).Identity() + "_1_.png"} {
		resp, err := http.Get(srv.URL + "/v1/images/" + name)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", name, resp.StatusCode)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRenderEndpointTimeout(t *testing.T) {
	gate := make(chan struct{})
	srv, tools := newTimedTestServer(t, 50*time.Millisecond, gate)

	resp, _ := postRender(t, srv, `{"expression": "x^2"}`)
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", resp.StatusCode)
	}

	// the render outlives the request; a repeat joins it or hits the cache
	close(gate)
	resp, out := postRender(t, srv, `{"expression": "x^2"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 once latex is released, got %d", resp.StatusCode)
	}
	if out.Baseline != 7 {
		t.Errorf("unexpected response: %+v", out)
	}
	if n := tools.Count("latex"); n != 1 {
		t.Errorf("expected latex to run once, ran %d times", n)
	}
}
