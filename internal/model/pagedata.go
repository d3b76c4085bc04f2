package model

import (
	"html/template"
	"net/http"

	"github.com/dmelim/folio/internal/config"
	"github.com/dmelim/folio/internal/theme"
)

// PageData carries the per-request template state shared by every page.
type PageData struct {
	SiteName    string
	Description string
	Tagline     string

	PageURL string

	Theme string

	SyntaxCSS    template.CSS
	SyntaxTheme  string
	SyntaxThemes []string
}

func NewPageData(r *http.Request) *PageData {
	syntaxTheme := theme.GetSyntaxThemeFromRequest(r)
	return &PageData{
		SiteName:     config.AppConfig.Site.Name,
		Description:  config.AppConfig.Site.Description,
		Tagline:      config.AppConfig.Site.Tagline,
		PageURL:      r.URL.Path,
		Theme:        theme.GetThemeFromRequest(r),
		SyntaxTheme:  syntaxTheme,
		SyntaxThemes: theme.GetSyntaxThemes(),
		SyntaxCSS:    theme.GenerateSyntaxCSS(syntaxTheme),
	}
}
