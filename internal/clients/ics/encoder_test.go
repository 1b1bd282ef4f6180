package ics_test

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	golangical "github.com/arran4/golang-ical"
	"github.com/emersion/go-ical"
	"github.com/jasonptoups/truckee-calendar/internal/clients/ics"
	"github.com/jasonptoups/truckee-calendar/internal/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, cal *ical.Calendar) string {
	var buf bytes.Buffer
	require.NoError(t, ics.Encode(&buf, cal))
	return buf.String()
}

func TestEncodeEmptyCalendar(t *testing.T) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, "-//Test//EN")
	cal.Props.SetText(ical.PropVersion, "2.0")

	assert.Equal(t, "BEGIN:VCALENDAR\r\nPRODID:-//Test//EN\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n", encode(t, cal))
}

func TestEncodeRoundTrip(t *testing.T) {
	for name, data := range map[string][]byte{
		"two events":           fixtures.TwoEvents,
		"five events":          fixtures.FiveEvents,
		"events without stamp": fixtures.FourEvents,
	} {
		t.Run(name, func(t *testing.T) {
			src, err := ics.Parse(data)
			require.NoError(t, err)

			out := encode(t, src)
			again, err := ics.Parse([]byte(out))
			require.NoError(t, err)

			assert.Equal(t, src.Component, again.Component)
		})
	}
}

func TestEncodeFolding(t *testing.T) {
	assert := assert.New(t)

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, "long@example.com")
	event.Props.SetText(ical.PropSummary, strings.Repeat("Donner Lake Café update ", 12))
	event.Props.SetText(ical.PropDescription, strings.Repeat("x", 300))

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Children = append(cal.Children, event.Component)

	out := encode(t, cal)
	assert.True(strings.HasSuffix(out, "\r\n"))

	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	for _, line := range lines {
		assert.LessOrEqual(len(line), 75, line)
		assert.True(utf8.ValidString(line), "fold split a UTF-8 sequence: %q", line)
	}

	parsed, err := ics.Parse([]byte(out))
	require.NoError(t, err)
	summary, err := parsed.Events()[0].Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(strings.Repeat("Donner Lake Café update ", 12), summary)
}

func TestEncodeParams(t *testing.T) {
	prop := ical.NewProp(ical.PropAttendee)
	prop.Value = "mailto:clerk@townoftruckee.gov"
	prop.Params.Set(ical.ParamCommonName, "Clerk; Town of Truckee")
	prop.Params.Set(ical.ParamRole, "CHAIR")

	event := ical.NewEvent()
	event.Props.Add(prop)
	cal := ical.NewCalendar()
	cal.Children = append(cal.Children, event.Component)

	out := encode(t, cal)
	assert.Contains(t, out, `ATTENDEE;CN="Clerk; Town of Truckee";ROLE=CHAIR:mailto:clerk@townoftruckee.gov`)
}

func TestEncodeRejectsInvalidValues(t *testing.T) {
	t.Run("newline in value", func(t *testing.T) {
		event := ical.NewEvent()
		event.Props.Set(&ical.Prop{Name: ical.PropSummary, Params: ical.Params{}, Value: "line\nbreak"})
		cal := ical.NewCalendar()
		cal.Children = append(cal.Children, event.Component)

		assert.Error(t, ics.Encode(&bytes.Buffer{}, cal))
	})

	t.Run("quote in param", func(t *testing.T) {
		prop := ical.NewProp(ical.PropOrganizer)
		prop.Value = "mailto:a@example.com"
		prop.Params.Set(ical.ParamCommonName, `The "Boss"`)
		cal := ical.NewCalendar()
		cal.Props.Add(prop)

		assert.Error(t, ics.Encode(&bytes.Buffer{}, cal))
	})

	t.Run("nil calendar", func(t *testing.T) {
		assert.Error(t, ics.Encode(&bytes.Buffer{}, nil))
	})
}

// The encoded output must also be readable by an unrelated parser
func TestEncodeReadableByOtherParser(t *testing.T) {
	src, err := ics.Parse(fixtures.TwoEvents)
	require.NoError(t, err)

	parsed, err := golangical.ParseCalendar(strings.NewReader(encode(t, src)))
	require.NoError(t, err)

	events := parsed.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "council-2026-01-14@townoftruckee.gov", events[0].Id())
	assert.Equal(t, "council-2026-01-28@townoftruckee.gov", events[1].Id())
}
