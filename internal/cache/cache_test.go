package cache

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

func TestCache_BasicOperations(t *testing.T) {
	cache := NewCache[string, string]()

	t.Run("Set and Get", func(t *testing.T) {
		cache.Set("test-key", "test-value")

		got, exists := cache.Get("test-key")
		if !exists {
			t.Error("Expected key to exist")
		}
		if got != "test-value" {
			t.Errorf("Expected %q, got %q", "test-value", got)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		_, exists := cache.Get("non-existent")
		if exists {
			t.Error("Expected key to not exist")
		}
	})

	t.Run("Overwrite existing key", func(t *testing.T) {
		cache.Set("overwrite-key", "value1")
		cache.Set("overwrite-key", "value2")

		got, _ := cache.Get("overwrite-key")
		if got != "value2" {
			t.Errorf("Expected %q, got %q", "value2", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		cache.Set("delete-key", "value")
		cache.Delete("delete-key")

		if _, exists := cache.Get("delete-key"); exists {
			t.Error("Expected key to be deleted")
		}

		// Deleting a missing key should not panic
		cache.Delete("non-existent")
	})

	t.Run("Clear", func(t *testing.T) {
		cache.Set("key1", "value1")
		cache.Set("key2", "value2")

		cache.Clear()

		_, exists1 := cache.Get("key1")
		_, exists2 := cache.Get("key2")
		if exists1 || exists2 {
			t.Error("Expected all keys to be cleared")
		}
	})
}

func TestCache_SetTo(t *testing.T) {
	cache := NewCache[string, string]()

	cache.Set("old", "oldvalue")
	cache.SetTo(map[string]string{
		"new1": "value1",
		"new2": "value2",
	})

	if _, exists := cache.Get("old"); exists {
		t.Error("Expected old items to be replaced")
	}

	got, exists := cache.Get("new1")
	if !exists || got != "value1" {
		t.Errorf("Expected new items to be set, got %q %v", got, exists)
	}
}

func TestCache_Concurrency(t *testing.T) {
	cache := NewCache[int, string]()
	const numGoroutines = 50
	const numOperations = 200

	var wg sync.WaitGroup

	// Writers
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				key := id*numOperations + j
				cache.Set(key, fmt.Sprintf("value-%d-%d", id, j))
			}
		}(i)
	}

	// Readers
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				cache.Get(id*numOperations + j)
			}
		}(i)
	}

	wg.Wait()
}

func TestRenderedMarkdownCache(t *testing.T) {
	ClearRenderedMarkdownCache()

	t.Run("Set and get rendered markdown", func(t *testing.T) {
		html := []byte("<h1>Test</h1>")

		SetRenderedMarkdown("test-hash", "github", html)

		cached, found := GetRenderedMarkdown("test-hash", "github")
		if !found {
			t.Fatal("Expected cached content to be found")
		}
		if !bytes.Equal(cached, html) {
			t.Errorf("Expected HTML %q, got %q", html, cached)
		}
	})

	t.Run("Different syntax theme creates separate entries", func(t *testing.T) {
		SetRenderedMarkdown("same-hash", "github", []byte("light"))
		SetRenderedMarkdown("same-hash", "monokai", []byte("dark"))

		cached1, _ := GetRenderedMarkdown("same-hash", "github")
		cached2, _ := GetRenderedMarkdown("same-hash", "monokai")

		if bytes.Equal(cached1, cached2) {
			t.Error("Expected separate entries per theme")
		}
	})

	t.Run("Clear rendered markdown cache", func(t *testing.T) {
		SetRenderedMarkdown("hash1", "theme1", []byte("html1"))

		ClearRenderedMarkdownCache()

		if _, found := GetRenderedMarkdown("hash1", "theme1"); found {
			t.Error("Expected cache to be cleared")
		}
	})
}

func TestSyntaxCSSCache(t *testing.T) {
	SetSyntaxCSS("github", ".chroma { color: #000; }")

	css, found := GetSyntaxCSS("github")
	if !found {
		t.Fatal("Expected cached CSS to be found")
	}
	if css == "" {
		t.Error("Expected non-empty CSS")
	}

	if _, found := GetSyntaxCSS("no-such-theme"); found {
		t.Error("Expected unknown theme to miss")
	}
}

func TestStaticHashCache(t *testing.T) {
	SetStaticHash("/static/style.css", "abc123")

	hash, found := GetStaticHash("/static/style.css")
	if !found || hash != "abc123" {
		t.Errorf("Expected cached hash, got %q %v", hash, found)
	}
}

func BenchmarkCache_Set(b *testing.B) {
	cache := NewCache[int, string]()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Set(i, fmt.Sprintf("value-%d", i))
	}
}

func BenchmarkCache_Get(b *testing.B) {
	cache := NewCache[int, string]()
	for i := 0; i < 10000; i++ {
		cache.Set(i, fmt.Sprintf("value-%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Get(i % 10000)
	}
}
