package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classcal/internal/model"
)

func TestExportParsesBack(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	events := []model.Event{
		{
			Summary:     "Math",
			Start:       time.Date(2024, 1, 15, 8, 0, 0, 0, loc),
			End:         time.Date(2024, 1, 15, 9, 45, 0, 0, loc),
			Location:    "Amphi A",
			Description: "INF1-TD-G1-01",
		},
		{
			Summary: "Sport",
			Start:   time.Date(2024, 1, 16, 13, 15, 0, 0, loc),
			End:     time.Date(2024, 1, 16, 15, 0, 0, 0, loc),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, "Mon planning", events, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	out := buf.String()
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "METHOD:PUBLISH")
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))

	parsed := Parser{Location: loc}.Parse(out)
	require.Len(t, parsed, 2)
	for i := range events {
		assert.Equal(t, events[i].Summary, parsed[i].Summary)
		assert.True(t, events[i].Start.Equal(parsed[i].Start))
		assert.True(t, events[i].End.Equal(parsed[i].End))
		assert.Equal(t, events[i].Location, parsed[i].Location)
		assert.Equal(t, events[i].Description, parsed[i].Description)
	}
}

func TestEventUIDStable(t *testing.T) {
	ev := model.Event{Summary: "Math", Start: time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)}
	ev.End = ev.Start.Add(time.Hour)

	assert.Equal(t, EventUID(ev), EventUID(ev))
	assert.True(t, strings.HasSuffix(EventUID(ev), "@classcal"))

	other := ev
	other.Location = "B12"
	assert.NotEqual(t, EventUID(ev), EventUID(other))
}
