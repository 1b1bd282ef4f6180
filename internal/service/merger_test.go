package service_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/emersion/go-ical"
	"github.com/jasonptoups/truckee-calendar/internal/clients/ics"
	"github.com/jasonptoups/truckee-calendar/internal/domain"
	"github.com/jasonptoups/truckee-calendar/internal/fixtures"
	"github.com/jasonptoups/truckee-calendar/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMeta = service.NewCalendarMeta("-//Truckee Unified Calendar//EN", "Town of Truckee - All Events", "America/Los_Angeles", "Town of Truckee", 3)

func parse(t *testing.T, data []byte) *ical.Calendar {
	cal, err := ics.Parse(data)
	require.NoError(t, err)
	return cal
}

func uids(t *testing.T, cal *ical.Calendar) []string {
	var out []string
	for _, child := range cal.Children {
		require.Equal(t, ical.CompEvent, child.Name)
		out = append(out, child.Props.Get(ical.PropUID).Value)
	}
	return out
}

func TestNewMergerMetadata(t *testing.T) {
	assert := assert.New(t)

	cal := service.NewMerger(testMeta).Calendar()

	text := func(name string) string {
		v, err := cal.Props.Text(name)
		require.NoError(t, err)
		return v
	}
	assert.Equal("-//Truckee Unified Calendar//EN", text(ical.PropProductID))
	assert.Equal("2.0", text(ical.PropVersion))
	assert.Equal("Town of Truckee - All Events", text(service.PropCalendarName))
	assert.Equal("America/Los_Angeles", text(service.PropCalendarTimezone))
	assert.Equal("Unified calendar from 3 Town of Truckee calendars", text(service.PropCalendarDescription))
	assert.Empty(cal.Children)

	var buf bytes.Buffer
	require.NoError(t, service.NewMerger(testMeta).Encode(&buf))
	assert.Contains(buf.String(), "X-WR-CALNAME:Town of Truckee - All Events\r\n")
	assert.NotContains(buf.String(), "VALUE=TEXT")
}

func TestMergeCountsAndOrder(t *testing.T) {
	assert := assert.New(t)

	results := []domain.FeedResult{
		{URL: "a", Calendar: parse(t, fixtures.TwoEvents)},
		{URL: "b", Calendar: parse(t, fixtures.NoEvents)},
		{URL: "c", Err: errors.New("timeout")},
		{URL: "d", Calendar: parse(t, fixtures.FiveEvents)},
	}

	m := service.Merge(testMeta, results)

	assert.Equal(7, m.Events())
	assert.Equal(3, m.Sources())
	assert.Equal([]int{2, 0, 0, 5}, []int{results[0].Events, results[1].Events, results[2].Events, results[3].Events})
	assert.Equal([]string{
		"council-2026-01-14@townoftruckee.gov",
		"council-2026-01-28@townoftruckee.gov",
		"rec-1@townoftruckee.gov",
		"rec-2@townoftruckee.gov",
		"rec-3@townoftruckee.gov",
		"rec-4@townoftruckee.gov",
		"rec-5@townoftruckee.gov",
	}, uids(t, m.Calendar()))
}

func TestMergeSkipsNonEvents(t *testing.T) {
	m := service.Merge(testMeta, []domain.FeedResult{{URL: "a", Calendar: parse(t, fixtures.TwoEvents)}})

	for _, child := range m.Calendar().Children {
		assert.NotEqual(t, ical.CompTimezone, child.Name)
		assert.NotEqual(t, ical.CompAlarm, child.Name)
	}
	// the alarm stays attached to its event
	first := m.Calendar().Children[0]
	require.Len(t, first.Children, 1)
	assert.Equal(t, ical.CompAlarm, first.Children[0].Name)
}

func TestMergeFindsNestedEvents(t *testing.T) {
	inner := ical.NewEvent()
	inner.Props.SetText(ical.PropUID, "inner")
	group := ical.NewComponent("X-GROUP")
	group.Children = append(group.Children, inner.Component)

	src := ical.NewCalendar()
	src.Children = append(src.Children, group)

	m := service.Merge(testMeta, []domain.FeedResult{{URL: "a", Calendar: src}})

	assert.Equal(t, 1, m.Events())
	assert.Equal(t, []string{"inner"}, uids(t, m.Calendar()))
}

func TestMergeKeepsDuplicates(t *testing.T) {
	results := []domain.FeedResult{
		{URL: "a", Calendar: parse(t, fixtures.FourEvents)},
		{URL: "b", Calendar: parse(t, fixtures.FourEvents)},
	}

	m := service.Merge(testMeta, results)

	assert.Equal(t, 8, m.Events())
	got := uids(t, m.Calendar())
	assert.Equal(t, got[:4], got[4:])
}

func TestMergePreservesProperties(t *testing.T) {
	src := parse(t, fixtures.TwoEvents)
	want := src.Events()

	m := service.Merge(testMeta, []domain.FeedResult{{URL: "a", Calendar: parse(t, fixtures.TwoEvents)}})

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))
	out := parse(t, buf.Bytes())

	got := out.Events()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Props, got[i].Props)
		assert.Equal(t, want[i].Children, got[i].Children)
	}
}

func TestMergeAllFailed(t *testing.T) {
	results := []domain.FeedResult{
		{URL: "a", Err: errors.New("404")},
		{URL: "b", Err: errors.New("timeout")},
	}

	m := service.Merge(testMeta, results)
	assert.Equal(t, 0, m.Events())
	assert.Equal(t, 0, m.Sources())

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))
	out := parse(t, buf.Bytes())
	assert.Empty(t, out.Children)
}
