// Package render turns a title and bullets into a branded PNG poster.
// The poster is laid out as HTML and screenshotted with a headless Chromium.
package render

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/scipunch/technews/config"
)

type Format = string

var (
	Square    = Format("square")
	Landscape = Format("landscape")
)

//go:embed poster.html
var posterHTML string

var posterTemplate = template.Must(template.New("poster").Parse(posterHTML))

type size struct {
	Width, Height int
}

var sizes = map[Format]size{
	Square:    {1080, 1080},
	Landscape: {1200, 627},
}

// ParseFormat falls back to Square for anything it does not know
func ParseFormat(s string) Format {
	f := strings.ToLower(strings.TrimSpace(s))
	if _, ok := sizes[f]; ok {
		return f
	}
	return Square
}

// Size returns the poster dimensions in pixels
func Size(f Format) (width, height int) {
	s := sizes[ParseFormat(f)]
	return s.Width, s.Height
}

type Poster struct {
	Title   string
	Bullets []string
}

type Branding struct {
	Format     Format
	BrandName  string
	LogoPath   string // optional, skipped when unreadable
	FooterText string
}

func BrandingFromConfig(cfg config.PosterConfig) Branding {
	return Branding{
		Format:     ParseFormat(cfg.Format),
		BrandName:  cfg.BrandName,
		LogoPath:   cfg.LogoPath,
		FooterText: cfg.FooterText,
	}
}

type templateData struct {
	Width, Height int
	TitleSize     int
	TitleWidth    int
	BodySize      int
	Brand         string
	LogoURI       template.URL
	Title         string
	Bullets       []string
	Footer        string
}

// HTML renders the poster page
func HTML(b Branding, p Poster) (string, error) {
	w, h := Size(b.Format)
	data := templateData{
		Width:      w,
		Height:     h,
		TitleSize:  46,
		BodySize:   30,
		TitleWidth: w - 128,
		Brand:      b.BrandName,
		Title:      p.Title,
		Bullets:    p.Bullets,
		Footer:     b.FooterText,
	}
	if w >= 1080 && h >= 1080 {
		data.TitleSize, data.BodySize = 56, 36
	}
	if b.LogoPath != "" {
		uri, err := logoDataURI(b.LogoPath)
		if err != nil {
			slog.Debug("skipping poster logo", "path", b.LogoPath, "with", err)
		} else {
			data.LogoURI = uri
			data.TitleWidth -= 140
		}
	}

	var buf bytes.Buffer
	if err := posterTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute poster template with %w", err)
	}
	return buf.String(), nil
}

func logoDataURI(path string) (template.URL, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime := http.DetectContentType(blob)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("unsupported logo content type %s", mime)
	}
	return template.URL("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(blob)), nil
}

// Renderer screenshots poster pages. Chromium is started on the first Render
// and kept until Close.
type Renderer struct {
	branding Branding

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

func New(b Branding) *Renderer {
	return &Renderer{branding: b}
}

// Render writes the poster PNG to outPath, creating its directory
func (r *Renderer) Render(ctx context.Context, p Poster, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	page, err := HTML(r.branding, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output directory with %w", err)
	}

	browser, err := r.launch()
	if err != nil {
		return err
	}
	w, h := Size(r.branding.Format)
	tab, err := browser.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{Width: w, Height: h},
	})
	if err != nil {
		return fmt.Errorf("could not create page: %w", err)
	}
	defer tab.Close()

	if err := tab.SetContent(page); err != nil {
		return fmt.Errorf("could not set poster content: %w", err)
	}
	if _, err := tab.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(outPath),
	}); err != nil {
		return fmt.Errorf("could not take screenshot: %w", err)
	}
	slog.Debug("poster rendered", "path", outPath)
	return nil
}

func (r *Renderer) launch() (playwright.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	if err := playwright.Install(); err != nil {
		return nil, fmt.Errorf("could not install playwright: %w", err)
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch()
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}
	r.pw, r.browser = pw, browser
	return browser, nil
}

// Close stops the browser if it was started
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pw == nil {
		return nil
	}
	var errs []error
	if err := r.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.pw.Stop(); err != nil {
		errs = append(errs, err)
	}
	r.pw, r.browser = nil, nil
	if len(errs) > 0 {
		return fmt.Errorf("failed to stop renderer with %w", errs[0])
	}
	return nil
}
