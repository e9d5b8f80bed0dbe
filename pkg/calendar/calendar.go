// Package calendar exports praxus schedules to Google Calendar.
//
// Exported events carry the private extended property praxus=1 so a later
// export can find and replace them without touching anything else on the
// calendar.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"praxus/internal/config"
	"praxus/pkg/logx"
	"praxus/pkg/schedule"
)

// Private extended property keys set on exported events.
const (
	PropMarker = "praxus"
	PropTaskID = "praxus_task_id"
)

// Exporter writes schedules to one calendar.
type Exporter struct {
	srv        *gcal.Service
	calendarID string
	log        logx.Logger
}

// New wraps an existing calendar service.
func New(srv *gcal.Service, calendarID string, log logx.Logger) *Exporter {
	if log.IsZero() {
		log = logx.Nop()
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Exporter{srv: srv, calendarID: calendarID, log: log.With(logx.String("component", "calendar"))}
}

// NewExporter builds an Exporter from a credentials file and a stored token.
// There is no interactive authorization: the token file must already exist.
func NewExporter(ctx context.Context, cfg config.CalendarConfig, log logx.Logger) (*Exporter, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", cfg.CredentialsFile, err)
	}
	oc, err := google.ConfigFromJSON(b, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := gcal.NewService(ctx, option.WithHTTPClient(oc.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return New(srv, cfg.CalendarID, log), nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read token %s: %w", path, err)
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return tok, nil
}

// EventFromBlock converts a block into a calendar event. title falls back
// to the task id.
func EventFromBlock(b schedule.Block, title string) *gcal.Event {
	if title == "" {
		title = "Task " + b.TaskID
	}
	return &gcal.Event{
		Summary: title,
		Start: &gcal.EventDateTime{
			DateTime: b.StartTime.Format(time.RFC3339),
			TimeZone: zoneName(b.StartTime),
		},
		End: &gcal.EventDateTime{
			DateTime: b.EndTime.Format(time.RFC3339),
			TimeZone: zoneName(b.EndTime),
		},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{
				PropMarker: "1",
				PropTaskID: b.TaskID,
			},
		},
	}
}

// zoneName returns an IANA name when the time carries one.
func zoneName(t time.Time) string {
	switch name := t.Location().String(); name {
	case "Local", "":
		return ""
	default:
		if _, err := time.LoadLocation(name); err != nil {
			return ""
		}
		return name
	}
}

// Export replaces previously exported events in the schedule's time range
// with one event per block. It returns the number of events created.
func (e *Exporter) Export(ctx context.Context, blocks []schedule.Block, titles map[string]string) (int, error) {
	if len(blocks) == 0 {
		return 0, nil
	}
	from, to := blocks[0].StartTime, blocks[0].EndTime
	for _, b := range blocks[1:] {
		if b.StartTime.Before(from) {
			from = b.StartTime
		}
		if b.EndTime.After(to) {
			to = b.EndTime
		}
	}

	var stale []string
	err := e.srv.Events.List(e.calendarID).
		PrivateExtendedProperty(PropMarker+"=1").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		Pages(ctx, func(page *gcal.Events) error {
			for _, ev := range page.Items {
				stale = append(stale, ev.Id)
			}
			return nil
		})
	if err != nil {
		return 0, fmt.Errorf("list exported events: %w", err)
	}
	for _, id := range stale {
		if err := e.srv.Events.Delete(e.calendarID, id).Context(ctx).Do(); err != nil {
			return 0, fmt.Errorf("delete event %s: %w", id, err)
		}
	}

	created := 0
	for _, b := range blocks {
		if _, err := e.srv.Events.Insert(e.calendarID, EventFromBlock(b, titles[b.TaskID])).Context(ctx).Do(); err != nil {
			return created, fmt.Errorf("insert event for %s: %w", b.TaskID, err)
		}
		created++
	}

	e.log.Info("schedule exported",
		logx.Int("removed", len(stale)),
		logx.Int("created", created),
		logx.String("calendar", e.calendarID),
	)
	return created, nil
}
