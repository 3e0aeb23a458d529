package sms

import (
	"net/url"
	"time"
)

// VoIP.ms getSMS rejects windows wider than roughly 90 days with status
// invalid_daterange, so that is the default (and fallback) window.
const defaultWindowDays = 90

const dateLayout = "2006-01-02"

func defaultDateRange() (from, to string) {
	today := time.Now()
	return today.AddDate(0, 0, -defaultWindowDays).Format(dateLayout), today.Format(dateLayout)
}

func pickDateRange(q url.Values) (from, to string) {
	defFrom, defTo := defaultDateRange()
	from = firstNonEmpty(q.Get("from"), q.Get("date_from"), defFrom)
	to = firstNonEmpty(q.Get("to"), q.Get("date_to"), defTo)
	return from, to
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
