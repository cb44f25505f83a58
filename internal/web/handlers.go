package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/lifegrid/internal/calendar"
	"github.com/hpungsan/lifegrid/internal/config"
	"github.com/hpungsan/lifegrid/internal/engine"
	"github.com/hpungsan/lifegrid/internal/errors"
	"github.com/hpungsan/lifegrid/internal/grid"
	"github.com/hpungsan/lifegrid/internal/logger"
	"github.com/hpungsan/lifegrid/internal/ops"
	"github.com/hpungsan/lifegrid/internal/period"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	eng      *engine.Engine
	cfg      *config.Config
	log      *logger.Logger
	renderer *Renderer
}

func (h *Handlers) page(title, nav string) PageData {
	return PageData{
		Title:   title,
		Version: h.renderer.version,
		Theme:   h.eng.Theme(),
		Nav:     nav,
	}
}

// HandleRoot handles GET / by sending the user to setup or the current year.
func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if !h.eng.SetupCompleted() {
		http.Redirect(w, r, "/setup", http.StatusFound)
		return
	}
	http.Redirect(w, r, yearURL(h.eng.Now().Year()), http.StatusFound)
}

// HandleSetupForm handles GET /setup.
func (h *Handlers) HandleSetupForm(w http.ResponseWriter, r *http.Request) {
	p := h.eng.Profile()
	data := SetupPageData{
		PageData:       h.page("Setup", "setup"),
		LifeExpectancy: p.LifeExpectancy,
		MinLife:        engine.MinLifeExpectancy,
		Stages:         h.stageFields(h.eng.Periods()),
	}
	if !p.BirthDate.IsZero() {
		data.BirthDate = p.BirthDate.String()
	}
	h.renderer.renderPage(w, r, "setup", data)
}

// HandleSetup handles POST /setup. Invalid input re-renders the form with the
// submitted values and a 400.
func (h *Handlers) HandleSetup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("malformed form"))
		return
	}

	birthRaw := strings.TrimSpace(r.PostFormValue("birth_date"))
	lifeRaw := strings.TrimSpace(r.PostFormValue("life_expectancy"))
	periods := h.eng.Periods()

	err := h.applySetupForm(r, birthRaw, lifeRaw, &periods)
	if err == nil {
		birth, _ := calendar.ParseDate(birthRaw)
		life, _ := strconv.Atoi(lifeRaw)
		err = h.eng.CompleteSetup(r.Context(), birth, life, &periods)
	}
	if err != nil {
		if !errors.Is(err, errors.ErrInvalidRequest) || wantsJSON(r) {
			h.renderer.renderError(w, r, err)
			return
		}
		life, _ := strconv.Atoi(lifeRaw)
		h.renderer.renderPageStatus(w, r, http.StatusBadRequest, "setup", SetupPageData{
			PageData:       h.page("Setup", "setup"),
			BirthDate:      birthRaw,
			LifeExpectancy: life,
			MinLife:        engine.MinLifeExpectancy,
			Stages:         h.stageFields(periods),
			Error:          errors.As(err).Message,
		})
		return
	}

	h.log.Info("setup completed", "birth_date", birthRaw, "life_expectancy", lifeRaw)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleYear handles GET /years/{year}.
func (h *Handlers) HandleYear(w http.ResponseWriter, r *http.Request) {
	if h.requireSetup(w, r) {
		return
	}
	year, err := pathInt(r, "year", 1, 9999)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	view := grid.Year(h.eng, year)
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, view)
		return
	}
	h.renderer.renderPage(w, r, "year", YearPageData{
		PageData: h.page(strconv.Itoa(year), "grid"),
		View:     view,
		Years:    h.eng.Years(),
		Stats:    h.eng.Statistics(),
	})
}

// HandleMonth handles GET /years/{year}/months/{month}.
func (h *Handlers) HandleMonth(w http.ResponseWriter, r *http.Request) {
	if h.requireSetup(w, r) {
		return
	}
	year, month, err := yearMonthParams(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	view := grid.Month(h.eng, year, month)
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, view)
		return
	}
	h.renderer.renderPage(w, r, "month", MonthPageData{
		PageData: h.page(fmt.Sprintf("%s %d", view.Name, year), "grid"),
		View:     view,
		MemoHTML: renderMarkdown(view.Memo),
	})
}

// HandleWeek handles GET /years/{year}/months/{month}/weeks/{week}.
func (h *Handlers) HandleWeek(w http.ResponseWriter, r *http.Request) {
	if h.requireSetup(w, r) {
		return
	}
	year, month, err := yearMonthParams(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	week, err := pathInt(r, "week", 1, calendar.WeeksPerMonth)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	view := grid.Week(h.eng, year, month, week)
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, view)
		return
	}
	h.renderer.renderPage(w, r, "week", WeekPageData{
		PageData: h.page(fmt.Sprintf("%s %d, %s", calendar.MonthName(month), year, view.Name), "grid"),
		View:     view,
		MemoHTML: renderMarkdown(view.Memo),
	})
}

// HandleMonthMemo handles POST /memos/month.
func (h *Handlers) HandleMonthMemo(w http.ResponseWriter, r *http.Request) {
	year, month, err := formYearMonth(r)
	if err == nil {
		err = h.eng.SetMonthMemo(r.Context(), year, month, r.PostFormValue("memo"))
	}
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.afterMutation(w, r, monthURL(year, month))
}

// HandleWeekMemo handles POST /memos/week.
func (h *Handlers) HandleWeekMemo(w http.ResponseWriter, r *http.Request) {
	year, month, err := formYearMonth(r)
	var week int
	if err == nil {
		week, err = formInt(r, "week")
	}
	if err == nil {
		err = h.eng.SetWeekMemo(r.Context(), year, month, week, r.PostFormValue("memo"))
	}
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.afterMutation(w, r, weekURL(year, month, week))
}

// HandleDayMemo handles POST /memos/day. A missing importance means zero.
func (h *Handlers) HandleDayMemo(w http.ResponseWriter, r *http.Request) {
	year, month, err := formYearMonth(r)
	var day, importance int
	if err == nil {
		day, err = formInt(r, "day")
	}
	if err == nil && strings.TrimSpace(r.PostFormValue("importance")) != "" {
		importance, err = formInt(r, "importance")
	}
	if err == nil {
		err = h.eng.SetDayMemo(r.Context(), year, month, day, r.PostFormValue("memo"), importance)
	}
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.afterMutation(w, r, weekURL(year, month, calendar.WeekOfDay(day)))
}

// HandleTheme handles POST /theme.
func (h *Handlers) HandleTheme(w http.ResponseWriter, r *http.Request) {
	if err := h.eng.SetTheme(r.Context(), r.PostFormValue("theme")); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.afterMutation(w, r, "/")
}

// HandleImport handles POST /import with a multipart "file" field.
func (h *Handlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	limit := ops.MaxImportBytes(h.cfg)
	// leave room for the multipart envelope; the file itself is checked below
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	file, _, err := r.FormFile("file")
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("file is required"))
		return
	}
	defer file.Close()

	data, err := ops.ReadLimited(file, limit)
	if err == nil {
		err = h.eng.Import(r.Context(), data)
	}
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.log.Info("document imported", "bytes", len(data))
	h.afterMutation(w, r, "/")
}

// HandleExport handles GET /export as a file download.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	body, err := h.eng.Export()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	name := fmt.Sprintf("lifegrid-%s.json", h.eng.Today())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(body)
}

// HandleStats handles GET /api/stats. API routes always answer in JSON.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.eng.Statistics()
	if stats == nil {
		renderJSONError(w, errors.NewSetupRequired())
		return
	}
	renderJSON(w, http.StatusOK, stats)
}

type resolveResponse struct {
	Date    calendar.Date  `json:"date"`
	Periods []period.Match `json:"periods"`
	Primary *period.Match  `json:"primary"`
}

// HandleResolve handles GET /api/resolve?year=&month=&day=. day defaults to 1.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, errY := strconv.Atoi(q.Get("year"))
	month, errM := strconv.Atoi(q.Get("month"))
	if errY != nil || errM != nil || month < 1 || month > 12 {
		renderJSONError(w, errors.NewInvalidRequest("year and month are required; month must be 1-12"))
		return
	}
	day := 1
	if raw := q.Get("day"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 1 || d > calendar.DaysInMonth(year, month) {
			renderJSONError(w, errors.NewInvalidRequest("day is out of range"))
			return
		}
		day = d
	}

	matches := h.eng.Resolve(year, month, day)
	var primary *period.Match
	if len(matches) > 0 {
		primary = &matches[0]
	} else {
		matches = []period.Match{}
	}
	renderJSON(w, http.StatusOK, resolveResponse{
		Date:    calendar.NewDate(year, month, day),
		Periods: matches,
		Primary: primary,
	})
}

// requireSetup redirects page requests to /setup until the profile exists.
// It reports whether the response has been written.
func (h *Handlers) requireSetup(w http.ResponseWriter, r *http.Request) bool {
	if h.eng.SetupCompleted() {
		return false
	}
	if wantsJSON(r) {
		h.renderer.renderError(w, r, errors.NewSetupRequired())
		return true
	}
	http.Redirect(w, r, "/setup", http.StatusFound)
	return true
}

// afterMutation answers a successful form post: JSON clients get {"ok":true},
// browsers are sent to the form's "return" path or fallback.
func (h *Handlers) afterMutation(w http.ResponseWriter, r *http.Request, fallback string) {
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	target := r.PostFormValue("return")
	if !localPath(target) {
		target = fallback
	}
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// localPath accepts only same-origin absolute paths.
func localPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "\\")
}

func pathInt(r *http.Request, name string, min, max int) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n < min || n > max {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("%s must be between %d and %d", name, min, max))
	}
	return n, nil
}

func yearMonthParams(r *http.Request) (int, int, error) {
	year, err := pathInt(r, "year", 1, 9999)
	if err != nil {
		return 0, 0, err
	}
	month, err := pathInt(r, "month", 1, 12)
	if err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

func formInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue(name)))
	if err != nil {
		return 0, errors.NewInvalidRequest(name + " must be a number")
	}
	return n, nil
}

func formYearMonth(r *http.Request) (int, int, error) {
	year, err := formInt(r, "year")
	if err != nil {
		return 0, 0, err
	}
	month, err := formInt(r, "month")
	if err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

func yearURL(year int) string {
	return fmt.Sprintf("/years/%d", year)
}

func monthURL(year, month int) string {
	return fmt.Sprintf("/years/%d/months/%d", year, month)
}

func weekURL(year, month, week int) string {
	return fmt.Sprintf("/years/%d/months/%d/weeks/%d", year, month, week)
}
