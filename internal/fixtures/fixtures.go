// Package fixtures holds calendar feed bodies used by tests.
package fixtures

import (
	_ "embed"
)

var (
	//go:embed twoEvents.ics
	TwoEvents []byte
	//go:embed noEvents.ics
	NoEvents []byte
	//go:embed fiveEvents.ics
	FiveEvents []byte
	//go:embed fourEvents.ics
	FourEvents []byte
	//go:embed truncated.ics
	Truncated []byte
	//go:embed twoCalendars.ics
	TwoCalendars []byte
	//go:embed errorPage.html
	ErrorPage []byte
)
