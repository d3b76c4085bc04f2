// Package cache provides thread-safe generic caching.
package cache

import (
	"html/template"
	"sync"
)

type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]V),
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.items[key]
	return val, ok
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]V)
}

func (c *Cache[K, V]) SetTo(items map[K]V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
}

var renderedMarkdownCache = NewCache[string, []byte]()

func GetRenderedMarkdown(contentHash, syntaxTheme string) ([]byte, bool) {
	return renderedMarkdownCache.Get(contentHash + ":" + syntaxTheme)
}

func SetRenderedMarkdown(contentHash, syntaxTheme string, html []byte) {
	renderedMarkdownCache.Set(contentHash+":"+syntaxTheme, html)
}

func ClearRenderedMarkdownCache() {
	renderedMarkdownCache.Clear()
}

var syntaxCSSCache = NewCache[string, template.CSS]()

func GetSyntaxCSS(theme string) (template.CSS, bool) {
	return syntaxCSSCache.Get(theme)
}

func SetSyntaxCSS(theme string, css template.CSS) {
	syntaxCSSCache.Set(theme, css)
}

var staticHashes = NewCache[string, string]()

func GetStaticHash(path string) (string, bool) {
	return staticHashes.Get(path)
}

func SetStaticHash(path, hash string) {
	staticHashes.Set(path, hash)
}
