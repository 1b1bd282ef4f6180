package service

import (
	"fmt"
	"io"

	"github.com/emersion/go-ical"
	"github.com/jasonptoups/truckee-calendar/internal/clients/ics"
	"github.com/jasonptoups/truckee-calendar/internal/domain"
)

// iCalendar extension properties understood by Apple and Google calendars
const (
	PropCalendarName        = "X-WR-CALNAME"
	PropCalendarTimezone    = "X-WR-TIMEZONE"
	PropCalendarDescription = "X-WR-CALDESC"
)

// CalendarMeta holds the descriptive properties of the merged calendar
type CalendarMeta struct {
	ProductID   string
	Name        string
	Timezone    string
	Description string
}

// NewCalendarMeta builds the metadata for a merge of feedCount feeds
// published by sourceName.
func NewCalendarMeta(productID, name, timezone, sourceName string, feedCount int) CalendarMeta {
	return CalendarMeta{
		ProductID:   productID,
		Name:        name,
		Timezone:    timezone,
		Description: fmt.Sprintf("Unified calendar from %d %s calendars", feedCount, sourceName),
	}
}

// Merger accumulates events from parsed feeds into one output calendar
type Merger struct {
	cal     *ical.Calendar
	events  int
	sources int
}

// NewMerger creates an output calendar carrying meta and no events
func NewMerger(meta CalendarMeta) *Merger {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, meta.ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	setExtText(cal.Props, PropCalendarName, meta.Name)
	setExtText(cal.Props, PropCalendarTimezone, meta.Timezone)
	setExtText(cal.Props, PropCalendarDescription, meta.Description)

	return &Merger{cal: cal}
}

// setExtText sets an X- property as escaped text. Props.SetText would tag
// it with VALUE=TEXT since extension properties have no default type.
func setExtText(props ical.Props, name, text string) {
	prop := ical.NewProp(name)
	prop.SetText(text)
	prop.Params.Del(ical.ParamValue)
	props.Set(prop)
}

// Add appends every event found anywhere in the feed's calendar and records
// the count on the result. Failed feeds are skipped and not counted.
func (m *Merger) Add(result *domain.FeedResult) {
	if !result.OK() {
		return
	}

	m.sources++
	added := 0
	walk(result.Calendar.Component, func(comp *ical.Component) {
		if comp.Name == ical.CompEvent {
			m.cal.Children = append(m.cal.Children, comp)
			added++
		}
	})

	result.Events = added
	m.events += added
}

// walk visits the descendants of comp depth-first, parents before children
func walk(comp *ical.Component, fn func(*ical.Component)) {
	for _, child := range comp.Children {
		fn(child)
		walk(child, fn)
	}
}

// Calendar returns the output calendar
func (m *Merger) Calendar() *ical.Calendar {
	return m.cal
}

// Events returns how many events have been appended
func (m *Merger) Events() int {
	return m.events
}

// Sources returns how many feeds were fetched successfully
func (m *Merger) Sources() int {
	return m.sources
}

// Encode writes the output calendar as iCalendar text
func (m *Merger) Encode(w io.Writer) error {
	return ics.Encode(w, m.cal)
}

// Merge folds results in order into a new output calendar
func Merge(meta CalendarMeta, results []domain.FeedResult) *Merger {
	m := NewMerger(meta)
	for i := range results {
		m.Add(&results[i])
	}
	return m
}
