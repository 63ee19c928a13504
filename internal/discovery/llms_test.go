package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

// llmsBody builds a plausible llms.txt referencing pages on origin,
// padded past the minimum size check.
func llmsBody(origin string) string {
	var b strings.Builder
	b.WriteString("# Example Docs\n\n")
	b.WriteString("> Reference documentation for Example.\n\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "- [Guide %d](%s/docs/guide-%d): covers topic %d in depth.\n", i, origin, i, i)
	}
	b.WriteString("\nExternal: [GitHub](https://github.com/example/example)\n")
	for b.Len() < minLLMSSize {
		b.WriteString("Additional notes padding the index file to a realistic size.\n")
	}
	return b.String()
}

func TestLLMSStrategy(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := newTestServer(t, mux)
	mux.HandleFunc("/llms.txt", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, llmsBody(srv.URL))
	})

	s := NewLLMSStrategy(srv.Client(), "docdex-test", nil)
	got, err := s.Discover(context.Background(), Target{BaseURL: srv.URL + "/docs"})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("len(descriptors) = %d, want 10: %+v", len(got), got)
	}
	if got[0].URL != srv.URL+"/docs/guide-0" {
		t.Errorf("descriptors[0].URL = %q", got[0].URL)
	}
	for _, d := range got {
		if strings.Contains(d.URL, "github.com") {
			t.Errorf("cross-origin URL leaked into descriptors: %q", d.URL)
		}
	}
}

func TestLLMSStrategyPrefersFullVariant(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := newTestServer(t, mux)
	mux.HandleFunc("/llms-full.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.ReplaceAll(llmsBody(srv.URL), "guide-", "full-"))
	})
	mux.HandleFunc("/llms.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, llmsBody(srv.URL))
	})

	s := NewLLMSStrategy(srv.Client(), "docdex-test", nil)
	got, err := s.Discover(context.Background(), Target{BaseURL: srv.URL + "/docs"})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(got) == 0 || !strings.Contains(got[0].URL, "full-0") {
		t.Errorf("descriptors = %+v, want llms-full.txt pages", got)
	}
}

func TestLLMSStrategyAbsent(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := newTestServer(t, mux)

	s := NewLLMSStrategy(srv.Client(), "docdex-test", nil)
	got, err := s.Discover(context.Background(), Target{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("descriptors = %+v, want none", got)
	}
}

func TestValidLLMSFile(t *testing.T) {
	t.Parallel()

	longMarkdown := "# Docs\n" + strings.Repeat("Some documentation text with a [link](https://example.com/docs/a).\n", 20)

	tests := []struct {
		name        string
		body        string
		contentType string
		want        bool
	}{
		{name: "valid markdown index", body: longMarkdown, contentType: "text/plain", want: true},
		{name: "too small", body: "# Docs\n", contentType: "text/plain", want: false},
		{name: "html content type", body: longMarkdown, contentType: "text/html; charset=utf-8", want: false},
		{
			name:        "html body",
			body:        "<!DOCTYPE html><html><body>" + strings.Repeat("x", minLLMSSize) + "</body></html>",
			contentType: "text/plain",
			want:        false,
		},
		{
			name:        "soft 404",
			body:        "404 page not found\n" + strings.Repeat("padding text without links here\n", 30),
			contentType: "text/plain",
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := validLLMSFile([]byte(tt.body), tt.contentType); got != tt.want {
				t.Errorf("validLLMSFile() = %v, want %v", got, tt.want)
			}
		})
	}
}
