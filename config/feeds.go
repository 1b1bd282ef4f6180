package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFeeds are the Town of Truckee iCalendar category feeds.
// Blank entries and entries starting with "#" are ignored.
var DefaultFeeds = []string{
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=25&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=26&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=44&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=27&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=29&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=24&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=30&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=31&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=32&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=28&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=33&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=47&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=14&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=34&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=35&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=36&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=37&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=38&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=46&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=39&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=40&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=41&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=45&feed=calendar",
	"https://www.townoftruckee.gov/common/modules/iCalendar/iCalendar.aspx?catID=42&feed=calendar",
}

type feedsFile struct {
	Feeds []string `yaml:"feeds"`
}

// LoadFeedsFile reads a YAML document of the form
//
//	feeds:
//	  - https://example.com/a.ics
//	  - "# disabled for now"
//
// The list is returned as written; cleaning happens at run time.
func LoadFeedsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f feedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return f.Feeds, nil
}
