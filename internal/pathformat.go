package internal

import (
	"fmt"
	"time"
)

// PathFormat is a destination directory template.
type PathFormat string

const (
	FormatYearMonth              PathFormat = "YYYY/MM"
	FormatYearMonthDay           PathFormat = "YYYY/MM/dd"
	FormatYearMonthNameDay       PathFormat = "YYYY/MMMM/dd"
	FormatYearMonthNumberNameDay PathFormat = "YYYY/MM - MMMM/dd"
)

var pathLayouts = map[PathFormat]string{
	FormatYearMonth:              "2006/01",
	FormatYearMonthDay:           "2006/01/02",
	FormatYearMonthNameDay:       "2006/January/02",
	FormatYearMonthNumberNameDay: "2006/01 - January/02",
}

// PathFormats lists the supported templates.
func PathFormats() []PathFormat {
	return []PathFormat{
		FormatYearMonth,
		FormatYearMonthDay,
		FormatYearMonthNameDay,
		FormatYearMonthNumberNameDay,
	}
}

// ParsePathFormat validates a template name.
func ParsePathFormat(s string) (PathFormat, error) {
	f := PathFormat(s)
	if _, ok := pathLayouts[f]; !ok {
		return "", fmt.Errorf("unsupported path format %q (want one of %q)", s, PathFormats())
	}
	return f, nil
}

// FormatPath renders t in UTC as a slash-separated relative directory,
// e.g. "2015/02 - February/15".
func FormatPath(t time.Time, f PathFormat) (string, error) {
	layout, ok := pathLayouts[f]
	if !ok {
		return "", fmt.Errorf("unsupported path format %q", string(f))
	}
	return t.UTC().Format(layout), nil
}
