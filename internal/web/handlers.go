package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"classcal/internal/course"
	"classcal/internal/ics"
	appLog "classcal/internal/log"
	"classcal/internal/model"
	"classcal/internal/schedule"
	"classcal/internal/state"
)

// maxImportBytes bounds uploaded calendar files.
const maxImportBytes = 10 << 20

const monthLayout = "2006-01"

type statusResponse struct {
	FeedConfigured bool       `json:"feed_configured"`
	Source         string     `json:"source,omitempty"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	Events         int        `json:"events"`
	Courses        int        `json:"courses"`
	Selected       int        `json:"selected"`
	Timezone       string     `json:"timezone"`
	WeekStart      string     `json:"week_start"`
	Grouping       string     `json:"grouping"`
}

// eventDTO is a JSON-friendly view of a placed event.
type eventDTO struct {
	Summary     string    `json:"summary"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Courses     []string  `json:"courses"`
	Left        float64   `json:"left"`
	Width       float64   `json:"width"`
	Top         float64   `json:"top"`
	Height      float64   `json:"height"`
	Group       int       `json:"group"`
}

type dayResponse struct {
	Date   string     `json:"date"`
	Prev   string     `json:"prev"`
	Next   string     `json:"next"`
	Events []eventDTO `json:"events"`
}

type calendarResponse struct {
	Month     string          `json:"month"`
	WeekStart string          `json:"week_start"`
	Cells     []schedule.Cell `json:"cells"`
}

type courseDTO struct {
	ID       string `json:"id"`
	Selected bool   `json:"selected"`
}

type coursesResponse struct {
	Courses  []courseDTO `json:"courses"`
	Selected []string    `json:"selected"`
}

type selectionRequest struct {
	Selected []string `json:"selected"`
}

type feedRequest struct {
	URL string `json:"url"`
}

func (s *Server) today() time.Time {
	return schedule.StartOfDay(s.now().In(s.loc))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	resp := statusResponse{
		FeedConfigured: s.FeedURL() != "",
		Source:         snap.Source,
		LastError:      snap.LastError,
		Events:         len(snap.Events),
		Courses:        len(snap.Courses),
		Selected:       snap.Selection.Len(),
		Timezone:       s.loc.String(),
		WeekStart:      strings.ToLower(s.weekStart.String()),
		Grouping:       s.policy.String(),
	}
	if !snap.LastUpdated.IsZero() {
		t := snap.LastUpdated
		resp.LastUpdated = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDay returns the laid-out events of one day.
//
// GET /api/day?date=2024-01-15 (default: today)
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	day := s.today()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := schedule.ParseDay(v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = d
	}

	snap := s.store.Snapshot()
	placed := schedule.LayoutDay(snap.Events, day, snap.Selection, s.policy, s.window)

	resp := dayResponse{
		Date:   schedule.DayKey(day),
		Prev:   schedule.DayKey(schedule.StepDay(snap.Events, day, snap.Selection, -1)),
		Next:   schedule.DayKey(schedule.StepDay(snap.Events, day, snap.Selection, 1)),
		Events: make([]eventDTO, 0, len(placed)),
	}
	for _, p := range placed {
		resp.Events = append(resp.Events, toEventDTO(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toEventDTO(p model.PlacedEvent) eventDTO {
	return eventDTO{
		Summary:     p.Summary,
		Start:       p.Start,
		End:         p.End,
		Location:    p.Location,
		Description: p.Description,
		Courses:     course.IdentifiersOf(p.Event),
		Left:        p.Left,
		Width:       p.Width,
		Top:         p.Top,
		Height:      p.Height,
		Group:       p.Group,
	}
}

// handleCalendar returns the 42-cell month grid.
//
// GET /api/calendar?month=2024-01&selected=2024-01-15
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today := s.today()

	selected := today
	if v := q.Get("selected"); v != "" {
		d, err := schedule.ParseDay(v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "selected must be YYYY-MM-DD")
			return
		}
		selected = d
	}

	month := selected
	if v := q.Get("month"); v != "" {
		m, err := time.ParseInLocation(monthLayout, v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		month = m
	}

	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, calendarResponse{
		Month:     month.Format(monthLayout),
		WeekStart: strings.ToLower(s.weekStart.String()),
		Cells:     schedule.MonthGrid(month, selected, today, s.weekStart, snap.Buckets),
	})
}

func coursesOf(snap *state.Snapshot) coursesResponse {
	resp := coursesResponse{
		Courses:  make([]courseDTO, 0, len(snap.Courses)),
		Selected: snap.Selection.Names(),
	}
	for _, id := range snap.Courses {
		resp.Courses = append(resp.Courses, courseDTO{ID: id, Selected: snap.Selection.Contains(id)})
	}
	return resp
}

func (s *Server) handleCourses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, coursesOf(s.store.Snapshot()))
}

// handleSetSelection replaces the selection.
//
// PUT /api/selection {"selected": ["INF1-TD-G1-01", ...]}
func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	snap := s.store.SetSelection(course.NewSelection(req.Selected...))
	appLog.Info("selection updated", "selected", snap.Selection.Len())
	writeJSON(w, http.StatusOK, coursesOf(snap))
}

func (s *Server) handleSelectAll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, coursesOf(s.store.SelectAll()))
}

func (s *Server) handleSelectNone(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, coursesOf(s.store.SelectNone()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.Refresh(r.Context()); err != nil {
		writeError(w, loadErrorStatus(err), err.Error())
		return
	}
	s.handleStatus(w, r)
}

// handleSetFeed stores a new feed URL in the config file and loads it. An
// empty URL clears the subscription without touching the loaded events.
//
// PUT /api/feed {"url": "https://..."}
func (s *Server) handleSetFeed(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	feedURL, err := normalizeFeedURL(req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.cfgMu.Lock()
	s.cfg.FeedURL = feedURL
	var saveErr error
	if s.configPath != "" {
		saveErr = s.cfg.Save(s.configPath)
	}
	s.cfgMu.Unlock()
	if saveErr != nil {
		appLog.Error("failed to save config", saveErr, "path", s.configPath)
		writeError(w, http.StatusInternalServerError, "failed to save config")
		return
	}
	appLog.Info("feed URL updated", "url", ics.RedactURL(feedURL))

	if feedURL == "" {
		s.handleStatus(w, r)
		return
	}
	s.handleRefresh(w, r)
}

// normalizeFeedURL accepts http(s) URLs and rewrites webcal:// to https://.
func normalizeFeedURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid feed URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "webcal", "webcals":
		u.Scheme = "https"
	default:
		return "", errors.New("feed URL must use http, https or webcal")
	}
	if u.Host == "" {
		return "", errors.New("feed URL has no host")
	}
	return u.String(), nil
}

// handleImport loads an uploaded calendar, either as a multipart "file"
// field or as the raw request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	name := "upload.ics"
	var body []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()
		if header.Filename != "" {
			name = header.Filename
		}
		body, err = io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
	} else {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large or unreadable")
			return
		}
	}

	if _, err := s.loader.LoadBytes(name, body); err != nil {
		writeError(w, loadErrorStatus(err), err.Error())
		return
	}
	s.handleStatus(w, r)
}

// handleExport serves the selected events as an ICS file.
func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	events := schedule.FilterSelected(snap.Events, snap.Selection)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="classcal.ics"`)
	if err := ics.Export(w, "classcal", events, s.now()); err != nil {
		appLog.Error("export failed", err)
	}
}
