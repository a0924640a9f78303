package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"01-02-06 15:04",
	"01-02-06",
}

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDateTime accepts RFC 3339, the common spreadsheet layouts and Excel
// serial day numbers. Values without a zone are read in loc.
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}

	// Excel serial, e.g. 45500.5
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 {
		wall := excelEpoch.Add(time.Duration(serial * 24 * float64(time.Hour))).Round(time.Second)
		return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}
