package render

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/dmelim/folio/internal/cache"
)

func setupTest() {
	cache.ClearRenderedMarkdownCache()
}

func TestRenderMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		markdown []byte
		contains string
	}{
		{
			name:     "heading",
			markdown: []byte("# Hello World"),
			contains: "<h1",
		},
		{
			name:     "inline code",
			markdown: []byte("Some `code` here"),
			contains: "<code>",
		},
		{
			name:     "fenced code block is highlighted",
			markdown: []byte("```go\nfunc main() {}\n```"),
			contains: `<div class="highlight">`,
		},
		{
			name:     "link opens in new tab",
			markdown: []byte("[site](https://example.com)"),
			contains: `target="_blank"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := RenderMarkdown(tt.markdown, "github")
			if !strings.Contains(string(html), tt.contains) {
				t.Errorf("Expected output to contain %q, got %q", tt.contains, html)
			}
		})
	}
}

func TestRenderMarkdownCached(t *testing.T) {
	setupTest()

	markdown := []byte("# Cached\n\nSome content")
	contentHash := "hash-1"

	html1 := RenderMarkdownCached(markdown, contentHash, "github")
	if len(html1) == 0 {
		t.Fatal("Expected rendered HTML")
	}

	cached, found := cache.GetRenderedMarkdown(contentHash, "github")
	if !found {
		t.Fatal("Expected content to be cached")
	}
	if !bytes.Equal(cached, html1) {
		t.Error("Cached HTML should match the rendered output")
	}

	html2 := RenderMarkdownCached(markdown, contentHash, "github")
	if !bytes.Equal(html1, html2) {
		t.Error("Cache hit should return identical HTML")
	}
}

func TestRenderMarkdownCachedSeparatesThemes(t *testing.T) {
	setupTest()

	markdown := []byte("```go\nvar x = 1\n```")

	RenderMarkdownCached(markdown, "hash-theme", "github")
	RenderMarkdownCached(markdown, "hash-theme", "monokai")

	_, found1 := cache.GetRenderedMarkdown("hash-theme", "github")
	_, found2 := cache.GetRenderedMarkdown("hash-theme", "monokai")
	if !found1 || !found2 {
		t.Error("Expected a cache entry per syntax theme")
	}
}

func TestRenderMarkdownCachedSkipsEmptyHash(t *testing.T) {
	setupTest()

	html := RenderMarkdownCached([]byte("# No Hash"), "", "github")
	if len(html) == 0 {
		t.Fatal("Expected rendered HTML even without a hash")
	}

	if _, found := cache.GetRenderedMarkdown("", "github"); found {
		t.Error("Expected nothing cached for an empty hash")
	}
}

func TestHighlightCode(t *testing.T) {
	out := HighlightCode("func main() {}", "go", "github")
	if !strings.Contains(out, "chroma") {
		t.Errorf("Expected chroma classes in output, got %q", out)
	}

	// Unknown languages fall back instead of failing
	out = HighlightCode("plain text", "no-such-lang", "github")
	if out == "" {
		t.Error("Expected fallback output for unknown language")
	}
}

func TestCacheConcurrency(t *testing.T) {
	setupTest()

	const numGoroutines = 50

	markdown := []byte("# Concurrent\n\nContent with `code`")

	var wg sync.WaitGroup
	results := make(chan []byte, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- RenderMarkdownCached(markdown, "concurrent-hash", "github")
		}()
	}

	wg.Wait()
	close(results)

	var first []byte
	for result := range results {
		if first == nil {
			first = result
			continue
		}
		if !bytes.Equal(result, first) {
			t.Fatal("Concurrent renders of the same content diverged")
		}
	}
}

func BenchmarkRenderMarkdownCached(b *testing.B) {
	cache.ClearRenderedMarkdownCache()

	markdown := []byte("# Bench\n\nSome **bold** and a\n\n```go\nfunc main() {}\n```\n")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RenderMarkdownCached(markdown, "bench-hash", "github")
	}
}
