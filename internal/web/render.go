package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/lifegrid/internal/calendar"
	"github.com/hpungsan/lifegrid/internal/engine"
	"github.com/hpungsan/lifegrid/internal/errors"
	"github.com/hpungsan/lifegrid/internal/grid"
	"github.com/hpungsan/lifegrid/internal/logger"
	"github.com/hpungsan/lifegrid/internal/period"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Theme   string
	Nav     string // "grid", "setup"
}

// StageField is one stage of the setup form. Repeatable stages list every
// stored entry plus a blank row for adding another.
type StageField struct {
	Stage     period.Stage
	Label     string
	Suggested string
	Repeated  bool
	HasLeave  bool
	Rows      []EntryRow
}

// EntryRow is one dated entry of a stage. Prefix names its form fields.
type EntryRow struct {
	Prefix string
	Start  string
	End    string
	Name   string
	Leaves []LeaveRow
}

// LeaveRow is one leave interval of a university entry.
type LeaveRow struct {
	Prefix string
	Start  string
	End    string
}

// SetupPageData is the template data for the setup page.
type SetupPageData struct {
	PageData
	BirthDate      string
	LifeExpectancy int
	MinLife        int
	Stages         []StageField
	Error          string
}

// YearPageData is the template data for the year grid.
type YearPageData struct {
	PageData
	View  grid.YearView
	Years []int
	Stats *engine.Statistics
}

// MonthPageData is the template data for the month grid.
type MonthPageData struct {
	PageData
	View     grid.MonthView
	MemoHTML template.HTML
}

// WeekPageData is the template data for the week grid.
type WeekPageData struct {
	PageData
	View     grid.WeekView
	MemoHTML template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	log       *logger.Logger
}

// NewRenderer parses every page against the shared layout.
func NewRenderer(templateFS fs.FS, version string, log *logger.Logger) *Renderer {
	if log == nil {
		log = logger.Nop()
	}
	funcMap := template.FuncMap{
		"add":       func(a, b int) int { return a + b },
		"sub":       func(a, b int) int { return a - b },
		"markdown":  renderMarkdown,
		"stars":     calendar.Stars,
		"preview":   grid.Preview,
		"monthName": calendar.MonthName,
		"join":      strings.Join,
		"levels":    importanceLevels,
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"setup": "setup.html",
		"year":  "year.html",
		"month": "month.html",
		"week":  "week.html",
		"error": "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		log:       log,
	}
}

func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a page. HTMX requests get only the "content" block.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error("template not found", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if req != nil && req.Header.Get("HX-Request") == "true" {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.log.Error("template execution failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error as an HTMX fragment, JSON or a full page.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	gErr := errors.As(err)
	status := gErr.Status
	message := gErr.Message
	if status >= 500 {
		r.log.Error("request failed", "path", req.URL.Path, "error", err)
	}

	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		renderJSONError(w, gErr)
		return
	}

	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

func importanceLevels() []int {
	levels := make([]int, engine.MaxImportance+1)
	for i := range levels {
		levels[i] = i
	}
	return levels
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSONError writes {"error":{"code","message","status"}}.
func renderJSONError(w http.ResponseWriter, gErr *errors.GridError) {
	renderJSON(w, gErr.Status, map[string]any{
		"error": map[string]any{
			"code":    string(gErr.Code),
			"message": gErr.Message,
			"status":  gErr.Status,
		},
	})
}

func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts memo text to HTML. Raw HTML in the source is not
// passed through (goldmark's default).
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}
