package cells

import "testing"

func TestResolveFormatsFallbackChain(testContext *testing.T) {
	dateFormat, timeFormat := ResolveFormats("", "", UserDatePreference{})
	if dateFormat != DateFormatFriendly || timeFormat != TimeFormat24Hour {
		testContext.Fatalf("expected engine defaults, got %q %q", dateFormat, timeFormat)
	}

	dateFormat, timeFormat = ResolveFormats("", "", UserDatePreference{DateFormat: DateFormatISO, TimeFormat: TimeFormat12Hour})
	if dateFormat != DateFormatISO || timeFormat != TimeFormat12Hour {
		testContext.Fatalf("expected viewer preference, got %q %q", dateFormat, timeFormat)
	}

	dateFormat, timeFormat = ResolveFormats(DateFormatUS, TimeFormat24Hour, UserDatePreference{DateFormat: DateFormatISO})
	if dateFormat != DateFormatUS || timeFormat != TimeFormat24Hour {
		testContext.Fatalf("expected field formats to win, got %q %q", dateFormat, timeFormat)
	}
}

func TestFormatDateZeroTimestamp(testContext *testing.T) {
	if got := FormatDate(DateValue{}, DateFormatISO, TimeFormat24Hour); got != "" {
		testContext.Fatalf("expected zero timestamp to render empty, got %q", got)
	}
}

func TestFormatDateLayouts(testContext *testing.T) {
	// 2023-11-14 22:13:20 UTC
	value := DateValue{Timestamp: 1700000000}
	cases := []struct {
		format   DateFormat
		expected string
	}{
		{DateFormatISO, "2023-11-14"},
		{DateFormatUS, "2023/11/14"},
		{DateFormatLocal, "14/11/2023"},
		{DateFormatDayMonth, "14-11-2023"},
		{DateFormatFriendly, "Nov 14, 2023"},
	}
	for _, testCase := range cases {
		if got := FormatDate(value, testCase.format, TimeFormat24Hour); got != testCase.expected {
			testContext.Fatalf("format %q: expected %q, got %q", testCase.format, testCase.expected, got)
		}
	}
}

func TestFormatDateIncludeTime(testContext *testing.T) {
	value := DateValue{Timestamp: 1700000000, IncludeTime: true}
	if got := FormatDate(value, DateFormatISO, TimeFormat24Hour); got != "2023-11-14 22:13" {
		testContext.Fatalf("expected 24 hour rendering, got %q", got)
	}
	if got := FormatDate(value, DateFormatISO, TimeFormat12Hour); got != "2023-11-14 10:13 PM" {
		testContext.Fatalf("expected 12 hour rendering, got %q", got)
	}
}

func TestFormatDateRange(testContext *testing.T) {
	value := DateValue{Timestamp: 1700000000, EndTimestamp: 1700086400, IsRange: true}
	if got := FormatDate(value, DateFormatISO, TimeFormat24Hour); got != "2023-11-14 - 2023-11-15" {
		testContext.Fatalf("expected range rendering, got %q", got)
	}
}
