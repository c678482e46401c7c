package control

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pxc"); got != "12345" {
			t.Errorf("pxc = %v, want 12345", got)
		}
		if got := r.URL.Query().Get("ver"); got != "abc123" {
			t.Errorf("ver = %v, want abc123", got)
		}
		w.Write([]byte("10 -20 http://img.example/hoelli.csv wall.example 1234 hoelli\n"))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "abc123", time.Second)
	d, err := c.Report(context.Background(), 12345)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	want := Directive{
		DX:       10,
		DY:       -20,
		ImageURL: "http://img.example/hoelli.csv",
		Host:     "wall.example",
		Port:     1234,
		Mode:     "hoelli",
	}
	if d != want {
		t.Errorf("Report() = %+v, want %+v", d, want)
	}
}

func TestReport_PaddedResponse(t *testing.T) {
	// Extra whitespace around and between tokens is tolerated.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("  0   0  http://i  h  80  idle  \n"))
	}))
	defer ts.Close()

	d, err := NewClient(ts.URL, "v", time.Second).Report(context.Background(), 0)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if d.Host != "h" || d.Port != 80 || d.Mode != "idle" {
		t.Errorf("Report() = %+v", d)
	}
}

func TestReport_ErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Error: no slot for you"))
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "v", time.Second).Report(context.Background(), 0)
	if !errors.Is(err, ErrControlChannel) {
		t.Errorf("Report() error = %v, want ErrControlChannel", err)
	}
}

func TestReport_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "v", time.Second).Report(context.Background(), 0)
	if !errors.Is(err, ErrControlChannel) {
		t.Errorf("Report() error = %v, want ErrControlChannel", err)
	}
}

func TestReport_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "v", 100*time.Millisecond)
	_, err := c.Report(context.Background(), 0)
	if !errors.Is(err, ErrControlChannel) {
		t.Errorf("Report() error = %v, want ErrControlChannel", err)
	}
}

func TestReport_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"too few fields", "10 20 http://i wall.example"},
		{"too many fields", "10 20 http://i wall.example 1234 hoelli extra"},
		{"bad dx", "x 20 http://i wall.example 1234 hoelli"},
		{"bad dy", "10 y http://i wall.example 1234 hoelli"},
		{"bad port", "10 20 http://i wall.example p hoelli"},
		{"empty body", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := NewClient(ts.URL, "v", time.Second).Report(context.Background(), 0)
			if !errors.Is(err, ErrControlChannel) {
				t.Errorf("Report() error = %v, want ErrControlChannel", err)
			}
		})
	}
}
