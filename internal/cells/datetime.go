package cells

import (
	"fmt"
	"time"
)

// DateFormat enumerates the supported date renderings.
type DateFormat string

const (
	DateFormatLocal    DateFormat = "Local"        // 02/01/2006
	DateFormatUS       DateFormat = "US"           // 2006/01/02
	DateFormatISO      DateFormat = "ISO"          // 2006-01-02
	DateFormatFriendly DateFormat = "Friendly"     // Jan 02, 2006
	DateFormatDayMonth DateFormat = "DayMonthYear" // 02-01-2006
)

// TimeFormat enumerates the supported time renderings.
type TimeFormat string

const (
	TimeFormat12Hour TimeFormat = "12Hour"
	TimeFormat24Hour TimeFormat = "24Hour"
)

// UserDatePreference is the viewer's fallback formatting choice, applied when
// the field's type option leaves a format unset.
type UserDatePreference struct {
	DateFormat DateFormat
	TimeFormat TimeFormat
}

// ResolveFormats fills unset field-level formats from the viewer preference,
// then from the engine defaults.
func ResolveFormats(fieldDate DateFormat, fieldTime TimeFormat, preference UserDatePreference) (DateFormat, TimeFormat) {
	dateFormat := fieldDate
	if dateFormat == "" {
		dateFormat = preference.DateFormat
	}
	if dateFormat == "" {
		dateFormat = DateFormatFriendly
	}
	timeFormat := fieldTime
	if timeFormat == "" {
		timeFormat = preference.TimeFormat
	}
	if timeFormat == "" {
		timeFormat = TimeFormat24Hour
	}
	return dateFormat, timeFormat
}

// FormatDate renders a decoded date value as a human-readable string. A zero
// timestamp renders empty; ranges render "start - end".
func FormatDate(value DateValue, dateFormat DateFormat, timeFormat TimeFormat) string {
	if value.Timestamp == 0 {
		return ""
	}
	rendered := formatTimestamp(value.Timestamp, dateFormat, timeFormat, value.IncludeTime)
	if value.IsRange && value.EndTimestamp != 0 {
		rendered = fmt.Sprintf("%s - %s", rendered, formatTimestamp(value.EndTimestamp, dateFormat, timeFormat, value.IncludeTime))
	}
	return rendered
}

func formatTimestamp(seconds int64, dateFormat DateFormat, timeFormat TimeFormat, includeTime bool) string {
	at := time.Unix(seconds, 0).UTC()
	layout := dateLayout(dateFormat)
	if includeTime {
		layout = layout + " " + timeLayout(timeFormat)
	}
	return at.Format(layout)
}

func dateLayout(format DateFormat) string {
	switch format {
	case DateFormatLocal:
		return "02/01/2006"
	case DateFormatUS:
		return "2006/01/02"
	case DateFormatISO:
		return "2006-01-02"
	case DateFormatDayMonth:
		return "02-01-2006"
	default:
		return "Jan 02, 2006"
	}
}

func timeLayout(format TimeFormat) string {
	if format == TimeFormat12Hour {
		return "03:04 PM"
	}
	return "15:04"
}
