package value

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// dayTimeDuration is an ISO8601 "PnDTnHnMnS" duration restricted to
// day/hour/minute/second components (XACML §B.9).
type dayTimeDuration struct {
	negative              bool
	days, hours, minutes  int64
	seconds               float64
}

var dayTimeDurationPattern = regexp.MustCompile(
	`^(-)?P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:([\d.]+)S)?)?$`)

func parseDayTimeDuration(s string) (any, error) {
	s = strings.TrimSpace(s)
	m := dayTimeDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "-P" {
		return nil, fmt.Errorf("invalid dayTimeDuration %q", s)
	}
	d := dayTimeDuration{negative: m[1] == "-"}
	d.days = parseIntOr0(m[2])
	d.hours = parseIntOr0(m[3])
	d.minutes = parseIntOr0(m[4])
	if m[5] != "" {
		d.seconds, _ = strconv.ParseFloat(m[5], 64)
	}
	return d, nil
}

func parseIntOr0(s string) int64 {
	if s == "" {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func (d dayTimeDuration) nanos() int64 {
	total := float64(d.days)*86400 + float64(d.hours)*3600 + float64(d.minutes)*60 + d.seconds
	n := int64(total * 1e9)
	if d.negative {
		n = -n
	}
	return n
}

func (d dayTimeDuration) String() string {
	var b strings.Builder
	if d.negative {
		b.WriteByte('-')
	}
	b.WriteByte('P')
	if d.days != 0 {
		fmt.Fprintf(&b, "%dD", d.days)
	}
	if d.hours != 0 || d.minutes != 0 || d.seconds != 0 {
		b.WriteByte('T')
		if d.hours != 0 {
			fmt.Fprintf(&b, "%dH", d.hours)
		}
		if d.minutes != 0 {
			fmt.Fprintf(&b, "%dM", d.minutes)
		}
		if d.seconds != 0 {
			fmt.Fprintf(&b, "%gS", d.seconds)
		}
	}
	if b.Len() == 1 || (d.negative && b.Len() == 2) {
		b.WriteString("0D")
	}
	return b.String()
}

// yearMonthDuration is an ISO8601 "PnYnM" duration restricted to year/month
// components (XACML §B.11).
type yearMonthDuration struct {
	negative          bool
	years, monthsPart int64
}

var yearMonthDurationPattern = regexp.MustCompile(`^(-)?P(?:(\d+)Y)?(?:(\d+)M)?$`)

func parseYearMonthDuration(s string) (any, error) {
	s = strings.TrimSpace(s)
	m := yearMonthDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "-P" {
		return nil, fmt.Errorf("invalid yearMonthDuration %q", s)
	}
	d := yearMonthDuration{negative: m[1] == "-"}
	d.years = parseIntOr0(m[2])
	d.monthsPart = parseIntOr0(m[3])
	return d, nil
}

func (d yearMonthDuration) months() int64 {
	n := d.years*12 + d.monthsPart
	if d.negative {
		n = -n
	}
	return n
}

func (d yearMonthDuration) String() string {
	var b strings.Builder
	if d.negative {
		b.WriteByte('-')
	}
	b.WriteByte('P')
	if d.years != 0 {
		fmt.Fprintf(&b, "%dY", d.years)
	}
	if d.monthsPart != 0 {
		fmt.Fprintf(&b, "%dM", d.monthsPart)
	}
	if b.Len() == 1 || (d.negative && b.Len() == 2) {
		b.WriteString("0Y")
	}
	return b.String()
}
