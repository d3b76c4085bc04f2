package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dmelim/folio/internal/blog"
	"github.com/dmelim/folio/internal/cache"
	"github.com/dmelim/folio/internal/config"
	"github.com/dmelim/folio/internal/feed"
	"github.com/dmelim/folio/internal/identity"
	"github.com/dmelim/folio/internal/model"
	"github.com/dmelim/folio/internal/render"
	"github.com/dmelim/folio/internal/sse"
	"github.com/dmelim/folio/internal/store"
	"github.com/dmelim/folio/internal/theme"
	"github.com/dmelim/folio/internal/util"
	"github.com/dmelim/folio/internal/view"
)

//go:embed static/* templates/*
var content embed.FS

const TopicPosts = "posts"

var logger zerolog.Logger

var clients = sse.NewClients()

var (
	dataStore    store.Store
	authProvider identity.Provider
	boot         *identity.Bootstrap
	synchronizer *feed.Synchronizer
	gateway      *blog.Gateway
	viewState    *view.Controller

	// Closed once the identity is resolved and the feed subscription is up.
	sessionUp = make(chan struct{})
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Error loading .env file")
	}

	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	setLoggers(logger)

	if err := config.LoadConfig("config.yaml"); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	cfg := config.AppConfig

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		logger = logger.Level(level)
		setLoggers(logger)
	}

	var err error
	dataStore, err = newStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize document store")
	}

	authProvider, err = newProvider(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize identity provider")
	}

	boot = identity.NewBootstrap(authProvider, os.Getenv("OWNER_TOKEN"))
	synchronizer = feed.New(dataStore, cfg.Store.AppID)

	go startSession(context.Background())

	// Calculate the hash of static content
	static, _ := fs.Sub(content, config.StaticLocalDir)
	fs.WalkDir(static, ".", func(path string, d fs.DirEntry, err error) error {
		if !d.IsDir() {
			cache.SetStaticHash(config.StaticUrlPath+path, util.ContentHash([]byte(path)))
		}
		return nil
	})

	mux := http.NewServeMux()

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow:"))
	})

	mux.Handle(config.StaticUrlPath, http.StripPrefix(config.StaticUrlPath, http.FileServer(http.FS(static))))

	mux.HandleFunc("/", serveIndex)
	mux.HandleFunc("/partials/posts", servePostsPartial)
	mux.HandleFunc("/partials/post", servePostPartial)
	mux.Handle("/partials/editor", requireOwner(serveEditor))

	mux.Handle("POST /api/posts", requireOwner(handleCreatePost))
	mux.Handle("PUT /api/posts/{id}", requireOwner(handleUpdatePost))
	mux.Handle("DELETE /api/posts/{id}", requireOwner(handleDeletePost))

	mux.HandleFunc("/sse", eventsHandler)

	mux.HandleFunc("/theme/toggle", serveThemePostToggle)
	mux.HandleFunc("/theme/opposite-icon", serveThemeOppositeIcon)
	mux.HandleFunc("POST /syntax-theme/set", serveSyntaxThemePostSet)
	mux.HandleFunc("GET /syntax-theme/{theme}", serveSyntaxThemeGetTheme)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	logger.Info().Str("addr", addr).Msg("Server listening")
	logger.Fatal().Err(http.ListenAndServe(addr, cacheIt(secureHeaders(mux.ServeHTTP)))).Msg("Server stopped")
}

func setLoggers(l zerolog.Logger) {
	config.SetLogger(l)
	store.SetLogger(l)
	identity.SetLogger(l)
	feed.SetLogger(l)
	blog.SetLogger(l)
	render.SetLogger(l)
}

func newStore(cfg *config.Config) (store.Store, error) {
	interval := time.Duration(cfg.Store.PollInterval) * time.Second

	switch cfg.Store.Backend {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Store.SQLite.Path, interval)
	case "s3":
		accessKeyID := os.Getenv("S3_ACCESS_KEY_ID")
		accessKeySecret := os.Getenv("S3_SECRET_ACCESS_KEY")
		if accessKeyID == "" || accessKeySecret == "" {
			return nil, &config.ConfigError{Field: "env S3_ACCESS_KEY_ID/S3_SECRET_ACCESS_KEY", Reason: "required for the s3 backend"}
		}
		return store.NewS3Store(accessKeyID, accessKeySecret,
			cfg.Store.S3.Endpoint, cfg.Store.S3.Region, cfg.Store.S3.Bucket, interval)
	default:
		return store.NewMemoryStore(), nil
	}
}

func newProvider(cfg *config.Config) (identity.Provider, error) {
	switch cfg.Auth.Provider {
	case "clerk":
		key := os.Getenv("CLERK_API")
		if key == "" {
			return nil, &config.ConfigError{Field: "env CLERK_API", Reason: "required for the clerk provider"}
		}
		return identity.NewClerkProvider(key), nil
	default:
		pubKey := os.Getenv("ED25519_PUBKEY")
		if pubKey == "" {
			return nil, &config.ConfigError{Field: "env ED25519_PUBKEY", Reason: "required for the token provider"}
		}
		return identity.NewTokenProvider(pubKey)
	}
}

// startSession bootstraps the identity, opens the live subscription and fans
// feed emissions out to SSE clients. A bootstrap failure is terminal: the
// site stays up but the blog renders a persistent error state.
func startSession(ctx context.Context) {
	id, err := boot.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Session bootstrap failed")
		return
	}

	cfg := config.AppConfig
	gateway = blog.NewGateway(dataStore, cfg.Store.AppID, cfg.Blog.Author, id)
	viewState = view.NewController(gateway)

	updates, err := synchronizer.Subscribe(ctx, id)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open feed subscription")
		return
	}

	close(sessionUp)

	for range updates {
		clients.Broadcast(TopicPosts, "reload")
	}

	if err := synchronizer.Err(); err != nil {
		logger.Warn().Err(err).Msg("Feed subscription closed, keeping stale snapshot")
		clients.Broadcast(TopicPosts, "stale")
	}
}

func sessionReady() bool {
	select {
	case <-sessionUp:
		return true
	default:
		return false
	}
}

// requireOwner gates admin mutations: the request must carry a session token
// resolving to the same identity the session was bootstrapped with.
func requireOwner(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sessionReady() {
			http.Error(w, "Session not ready", http.StatusServiceUnavailable)
			return
		}

		if !isOwner(r) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isOwner(r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		if cookie, err := r.Cookie("session"); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return false
	}

	requester, err := authProvider.RestoreSession(r.Context(), token)
	if err != nil {
		return false
	}

	id, err := boot.Identity()
	return err == nil && requester == id
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	tmpl, err := template.ParseFS(content,
		config.TemplatesLocalDir+"/"+config.TemplateLayout,
		config.TemplatesLocalDir+"/"+config.TemplateIndex)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	_, fatalErr := boot.Identity()

	data := struct {
		*model.PageData
		Ready    bool
		FatalErr error
	}{
		PageData: model.NewPageData(r),
		Ready:    sessionReady(),
		FatalErr: fatalErr,
	}

	w.Header().Set(config.HETag, util.ContentHashString(data.Theme+data.SyntaxTheme))

	if err := tmpl.ExecuteTemplate(w, config.TemplateLayout, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type renderedPost struct {
	ID     model.PostID
	Title  string
	Author string
	When   string
	HTML   template.HTML
}

func renderPosts(r *http.Request) []renderedPost {
	syntaxTheme := theme.GetSyntaxThemeFromRequest(r)

	posts := synchronizer.Snapshot()
	out := make([]renderedPost, 0, len(posts))
	for _, p := range posts {
		html := render.RenderMarkdownCached([]byte(p.Content), util.ContentHashString(p.Content), syntaxTheme)
		out = append(out, renderedPost{
			ID:     p.ID,
			Title:  p.Title,
			Author: p.Author,
			When:   time.UnixMilli(p.Timestamp).UTC().Format("Jan 2, 2006"),
			HTML:   template.HTML(html),
		})
	}
	return out
}

func servePostsPartial(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(config.HCType, config.CTypeHTML)

	if !sessionReady() {
		w.Write([]byte(`<p class="loading">Loading…</p>`))
		return
	}

	var notice string
	if viewState != nil {
		notice = viewState.Notice()
	}

	data := struct {
		Posts  []renderedPost
		Admin  bool
		Stale  bool
		Notice string
	}{
		Posts:  renderPosts(r),
		Admin:  isOwner(r),
		Stale:  synchronizer.Err() != nil,
		Notice: notice,
	}

	tmpl, err := template.ParseFS(content, config.TemplatesLocalDir+"/posts.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := tmpl.ExecuteTemplate(w, "posts.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func servePostPartial(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if !sessionReady() {
		http.Error(w, "Session not ready", http.StatusServiceUnavailable)
		return
	}

	for _, p := range synchronizer.Snapshot() {
		if p.ID == model.PostID(id) {
			html := render.RenderMarkdownCached([]byte(p.Content),
				util.ContentHashString(p.Content), theme.GetSyntaxThemeFromRequest(r))

			w.Header().Set(config.HCType, config.CTypeHTML)
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, "<title>%s</title>\n%s", template.HTMLEscapeString(p.Title), html)
			return
		}
	}

	http.NotFound(w, r)
}

func serveEditor(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("cancel") != "" {
		viewState.CancelEdit()
		w.WriteHeader(http.StatusOK)
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		target := model.Post{ID: model.PostID(id)}
		for _, p := range synchronizer.Snapshot() {
			if p.ID == target.ID {
				target = p
				break
			}
		}
		viewState.BeginEdit(target)
	} else {
		viewState.BeginCreate()
	}

	writeEditor(w)
}

func writeEditor(w http.ResponseWriter) {
	_, target := viewState.EditState()

	data := struct {
		Target      model.PostID
		Draft       model.Draft
		InlineError error
	}{
		Target:      target,
		Draft:       viewState.Draft(),
		InlineError: viewState.InlineError(),
	}

	tmpl, err := template.ParseFS(content, config.TemplatesLocalDir+"/"+config.TemplateEditor)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	if err := tmpl.ExecuteTemplate(w, config.TemplateEditor, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func handleCreatePost(w http.ResponseWriter, r *http.Request) {
	mode, _ := viewState.EditState()
	if mode != view.EditCreating {
		viewState.BeginCreate()
	}
	viewState.SetDraft(r.FormValue("title"), r.FormValue("content"))

	submitDraft(w, r)
}

func handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	id := model.PostID(r.PathValue("id"))

	mode, target := viewState.EditState()
	if mode != view.EditExisting || target != id {
		viewState.BeginEdit(model.Post{ID: id})
	}
	viewState.SetDraft(r.FormValue("title"), r.FormValue("content"))

	submitDraft(w, r)
}

func submitDraft(w http.ResponseWriter, r *http.Request) {
	err := viewState.Submit(r.Context())

	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusUnprocessableEntity)
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		servePostsPartial(w, r)
	}
}

func handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := model.PostID(r.PathValue("id"))

	target := model.Post{ID: id}
	for _, p := range synchronizer.Snapshot() {
		if p.ID == id {
			target = p
			break
		}
	}

	viewState.RequestDelete(target)

	// The prompt closes regardless of the delete's outcome; a failure only
	// surfaces as a notice on the next post list render.
	if err := viewState.ConfirmDelete(r.Context()); err != nil {
		logger.Warn().Err(err).Str("post_id", string(id)).Msg("Delete failed")
	}

	servePostsPartial(w, r)
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = TopicPosts
	}

	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	client := &sse.Client{
		Msg:   make(chan string),
		Topic: topic,
	}

	clients.Add(client)

	logger.Info().Str("topic", topic).Msg("New SSE client connected")

	defer func() {
		clients.Delete(client)
		logger.Info().Msg("SSE client disconnected")
	}()

	notify := r.Context().Done()
	for {
		select {
		case msg := <-client.Msg:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-notify:
			return
		}
	}
}

func serveThemePostToggle(w http.ResponseWriter, r *http.Request) {
	currentTheme := theme.GetThemeFromRequest(r)

	newTheme := config.DarkTheme
	if currentTheme == config.DarkTheme {
		newTheme = config.LightTheme
	}

	http.SetCookie(w, &http.Cookie{
		Name:  config.CookieTheme,
		Value: newTheme,
		Path:  "/",
	})

	syntaxTheme := theme.GetDefaultSyntaxTheme(newTheme)
	if cookie, err := r.Cookie(config.CookieSyntaxTheme); err == nil {
		syntaxTheme = cookie.Value
	}

	w.Header().Set("Hx-Trigger", fmt.Sprintf(`{"themeChanged":{"value":"%s","syntaxTheme":"%s"}}`, newTheme, syntaxTheme))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(theme.GetThemeIcon(newTheme)))
}

func serveThemeOppositeIcon(w http.ResponseWriter, r *http.Request) {
	currTheme := r.URL.Query().Get("theme")
	if currTheme == "" {
		http.Error(w, "theme required", http.StatusBadRequest)
		return
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(theme.GetThemeIcon(currTheme)))
}

func serveSyntaxThemePostSet(w http.ResponseWriter, r *http.Request) {
	currTheme := r.FormValue("syntax-theme-select")
	if currTheme == "" {
		http.Error(w, "theme required", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieSyntaxTheme,
		Value:    currTheme,
		Path:     "/",
		HttpOnly: true,
	})

	themeStyle := []byte(theme.GenerateSyntaxCSS(currTheme))
	w.Header().Set(config.HCType, config.CTypeCSS)
	w.Header().Set(config.HETag, util.ContentHash(themeStyle))
	w.WriteHeader(http.StatusOK)
	w.Write(themeStyle)
}

func serveSyntaxThemeGetTheme(w http.ResponseWriter, r *http.Request) {
	currTheme := r.PathValue("theme")

	themeStyle := []byte(theme.GenerateSyntaxCSS(currTheme))
	w.Header().Set(config.HCType, config.CTypeCSS)
	w.Header().Set(config.HETag, util.ContentHash(themeStyle))
	w.WriteHeader(http.StatusOK)
	w.Write(themeStyle)
}

func cacheIt(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")
		w.Header().Set("Vary", "Cookie")

		// Add etag header to response if it's a static file
		if hash, ok := cache.GetStaticHash(r.URL.Path); ok {
			w.Header().Set(config.HCacheControl, "public, max-age=3600")
			w.Header().Set(config.HETag, hash)
		}

		h(w, r)
	}
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		h(w, r)
	}
}
