package render

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github-faces/internal/domain"
)

// Renderer turns the cached user collection into a static site: index page,
// sitemap and RSS feed.
type Renderer struct {
	siteDir string
	baseURL string
	logger  *logrus.Logger
	now     func() time.Time
}

type Config struct {
	SiteDir string
	BaseURL string
	Logger  *logrus.Logger
	Now     func() time.Time
}

func New(cfg Config) *Renderer {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Renderer{
		siteDir: cfg.SiteDir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
}

// displayUser carries pre-formatted fields so the template stays dumb.
type displayUser struct {
	Login      string
	Name       string
	Location   string
	AvatarPath string
	Followers  string
	Following  string
	Repos      string
	Gists      string
	Sponsors   string
	Sponsoring string
}

const layout = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>GitHub Faces</title>
<link rel="stylesheet" href="style.css">
</head>
<body>
<header><h1>GitHub Faces</h1></header>
<div class="grid" id="grid">
{{- range .Users }}
<div class="card">
  <a href="https://github.com/{{ .Login }}">
    <img src="{{ .AvatarPath }}" alt="{{ .Login }}" loading="lazy">
  </a>
  <h2>{{ .Login }}</h2>
  {{- if .Name }}<p class="name">{{ .Name }}</p>{{ end }}
  {{- if .Location }}<p class="location">{{ .Location }}</p>{{ end }}
  <ul class="stats">
    <li>Followers: {{ .Followers }}</li>
    <li>Following: {{ .Following }}</li>
    <li>Repos: {{ .Repos }}</li>
    <li>Gists: {{ .Gists }}</li>
    <li>Sponsors: {{ .Sponsors }}</li>
    <li>Sponsoring: {{ .Sponsoring }}</li>
  </ul>
</div>
{{- end }}
</div>
<footer><p>Generated {{ .Generated }}</p></footer>
</body>
</html>`

var indexTemplate = template.Must(template.New("index").Parse(layout))

// Render writes index.html, sitemap.xml and feed.xml under the site dir.
func (r *Renderer) Render(users []domain.User) error {
	if err := os.MkdirAll(r.siteDir, 0o755); err != nil {
		return fmt.Errorf("create site dir: %w", err)
	}

	display := make([]displayUser, len(users))
	for i, u := range users {
		name := ""
		if u.Name != nil {
			name = *u.Name
		}
		display[i] = displayUser{
			Login:      u.Login,
			Name:       name,
			Location:   u.Location,
			AvatarPath: "images/faces/" + strings.ToLower(u.Login) + ".png",
			Followers:  formatCount(u.Followers),
			Following:  formatCount(u.Following),
			Repos:      formatCount(u.PublicRepos),
			Gists:      formatCount(u.PublicGists),
			Sponsors:   formatCount(u.SponsorsCount),
			Sponsoring: formatCount(u.SponsoringCount),
		}
	}

	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, map[string]any{
		"Users":     display,
		"Generated": r.now().UTC().Format("2006-01-02 15:04"),
	})
	if err != nil {
		return fmt.Errorf("execute template: %w", err)
	}

	indexPath := filepath.Join(r.siteDir, "index.html")
	if err := os.WriteFile(indexPath, []byte(minifyHTML(buf.String())), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	r.logger.Infof("rendered %s (%d users)", indexPath, len(users))

	if err := r.writeSitemap(); err != nil {
		return err
	}
	return r.writeFeed(users)
}

func (r *Renderer) writeSitemap() error {
	loc := r.baseURL
	if loc == "" {
		loc = "/"
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	b.WriteString("<url><loc>" + loc + "</loc></url>")
	b.WriteString("</urlset>\n")

	path := filepath.Join(r.siteDir, "sitemap.xml")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write sitemap: %w", err)
	}
	r.logger.Infof("sitemap generated at %s", path)
	return nil
}

func (r *Renderer) writeFeed(users []domain.User) error {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<rss version="2.0"><channel>`)
	b.WriteString("<title>GitHub Faces</title>")
	b.WriteString("<link>" + r.baseURL + "</link>")
	b.WriteString("<description>GitHub users by follower count</description>")
	b.WriteString("<lastBuildDate>" + r.now().UTC().Format(time.RFC1123Z) + "</lastBuildDate>")
	for _, u := range users {
		b.WriteString("<item>")
		b.WriteString("<title>" + template.HTMLEscapeString(u.Login) + "</title>")
		b.WriteString("<link>https://github.com/" + template.HTMLEscapeString(u.Login) + "</link>")
		b.WriteString("<guid>https://github.com/" + template.HTMLEscapeString(u.Login) + "</guid>")
		b.WriteString("</item>")
	}
	b.WriteString("</channel></rss>\n")

	path := filepath.Join(r.siteDir, "feed.xml")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	r.logger.Infof("feed generated at %s", path)
	return nil
}

// formatCount renders a count with thousands separators, or the marker for
// an unavailable value.
func formatCount(c domain.Count) string {
	n, ok := c.Value()
	if !ok {
		return c.String()
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

var interTagWhitespace = regexp.MustCompile(`>\s+<`)

// minifyHTML trims whitespace between tags; enough to keep the page small
// without an external minifier.
func minifyHTML(html string) string {
	return strings.TrimSpace(interTagWhitespace.ReplaceAllString(html, "><"))
}
