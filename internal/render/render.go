// Package render emits the static timeline page consumed by the carousel
// front-end, and the minimal error page used when a run could fetch
// nothing at all.
package render

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"jigdule/internal/model"
)

//go:embed templates/index.html.tmpl
var indexTmplSrc string

//go:embed templates/error.html.tmpl
var errorTmplSrc string

var (
	indexTmpl = template.Must(template.New("index").Funcs(funcMap).Parse(indexTmplSrc))
	errorTmpl = template.Must(template.New("error").Parse(errorTmplSrc))
)

var funcMap = template.FuncMap{
	"timeOfDay":     timeOfDay,
	"dayHeading":    dayHeading,
	"dateAttr":      dateAttr,
	"statusLabel":   statusLabel,
	"platformLabel": platformLabel,
}

// weekday labels, Sunday first.
var weekdayKanji = [7]string{"日", "月", "火", "水", "木", "金", "土"}

// eventView decorates an Event with the roster info the template needs.
type eventView struct {
	model.Event
	LocalTime   time.Time
	CreatorName string
	Avatar      string
}

type dayView struct {
	Date   time.Time
	Events []eventView
}

type pageData struct {
	Title       string
	Days        []dayView
	GeneratedAt time.Time
}

// WriteTimeline renders the grouped timeline into dir/index.html. Events
// are stamped with the display-timezone clock time; avatars come from the
// roster keyed by creator ID.
func WriteTimeline(dir string, groups []model.DayGroup, creators []model.Creator, loc *time.Location, now time.Time) error {
	byID := make(map[string]model.Creator, len(creators))
	for _, c := range creators {
		byID[c.ID] = c
	}

	days := make([]dayView, 0, len(groups))
	for _, g := range groups {
		dv := dayView{Date: g.LocalDate}
		for _, ev := range g.Events {
			view := eventView{
				Event:     ev,
				LocalTime: ev.OccursAt.In(loc),
			}
			if c, ok := byID[ev.CreatorID]; ok {
				view.CreatorName = c.Name
				view.Avatar = c.Avatar
			}
			dv.Events = append(dv.Events, view)
		}
		days = append(days, dv)
	}

	data := pageData{
		Title:       "jigdule",
		Days:        days,
		GeneratedAt: now.In(loc),
	}

	return writeHTML(filepath.Join(dir, "index.html"), func(f *os.File) error {
		return indexTmpl.Execute(f, data)
	})
}

// WriteError renders the fallback page emitted when the run failed before
// any data was gathered.
func WriteError(dir string, cause error) error {
	data := struct {
		Message string
	}{Message: cause.Error()}

	return writeHTML(filepath.Join(dir, "index.html"), func(f *os.File) error {
		return errorTmpl.Execute(f, data)
	})
}

// writeHTML writes via temp file + rename so a crashed run never leaves a
// half-written page behind.
func writeHTML(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("render: create out dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".jigdule-html-*.tmp")
	if err != nil {
		return fmt.Errorf("render: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("render: execute template: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("render: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("render: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("render: rename: %w", err)
	}
	return nil
}

func timeOfDay(t time.Time) string {
	return t.Format("15:04:05")
}

func dayHeading(t time.Time) string {
	return fmt.Sprintf("%02d/%02d (%s)", int(t.Month()), t.Day(), weekdayKanji[int(t.Weekday())])
}

func dateAttr(t time.Time) string {
	return t.Format("2006-01-02")
}

func statusLabel(k model.Kind) string {
	switch k {
	case model.KindLive:
		return "LIVE"
	case model.KindScheduled:
		return "予定"
	default:
		return "過去"
	}
}

func platformLabel(ev model.Event) string {
	switch ev.Platform {
	case model.PlatformTwitch:
		switch ev.Kind {
		case model.KindLive:
			return "Twitch LIVE"
		case model.KindScheduled:
			return "Twitch 予定"
		default:
			return "Twitch 過去配信"
		}
	default:
		switch ev.Kind {
		case model.KindLive:
			return "YouTube LIVE"
		case model.KindScheduled:
			return "YouTube 予定"
		default:
			return "YouTube 投稿"
		}
	}
}
