package ics

import (
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"classcal/internal/model"
)

const productID = "-//classcal//personal schedule//EN"

// uidNamespace scopes the name-based UUIDs of exported events.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:classcal:event"))

// EventUID derives a stable UID from the event content, so that a client
// re-subscribing to the export sees the same UID for the same lesson.
func EventUID(ev model.Event) string {
	key := strings.Join([]string{
		ev.Summary,
		ev.Start.UTC().Format(time.RFC3339),
		ev.End.UTC().Format(time.RFC3339),
		ev.Location,
	}, "\x1f")
	return uuid.NewSHA1(uidNamespace, []byte(key)).String() + "@classcal"
}

// Export writes events as a PUBLISH VCALENDAR. Times are written in UTC so
// the output does not depend on VTIMEZONE support in the reader.
func Export(w io.Writer, name string, events []model.Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		ve := cal.AddEvent(EventUID(ev))
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		ve.SetSummary(ev.Summary)
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}
