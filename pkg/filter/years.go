package filter

import (
	"strconv"
	"strings"
	"time"
)

// now is replaced in tests.
var now = time.Now

// DisplayYearRange formats a year range for display. Zero means an open
// end. The cases are checked in order: both open yields "", equal ends yield
// the single year, an open start yields "through <to>", an open end yields
// the bare year when it is the current year and "since <from>" otherwise,
// and anything else yields "from-to".
func DisplayYearRange(from, to int) string {
	switch {
	case from == 0 && to == 0:
		return ""
	case from == to:
		return strconv.Itoa(from)
	case from == 0:
		return "through " + strconv.Itoa(to)
	case to == 0:
		if from == now().Year() {
			return strconv.Itoa(from)
		}
		return "since " + strconv.Itoa(from)
	default:
		return strconv.Itoa(from) + "-" + strconv.Itoa(to)
	}
}

// ParseYearRange parses a range filter value such as "2010-2020", "-2020",
// "2015-" or "2012". Unparseable ends are treated as open.
func ParseYearRange(s string) (from, to int) {
	s = strings.TrimSpace(s)
	lo, hi, isRange := strings.Cut(s, "-")
	if !isRange {
		y, _ := strconv.Atoi(s)
		return y, y
	}
	from, _ = strconv.Atoi(strings.TrimSpace(lo))
	to, _ = strconv.Atoi(strings.TrimSpace(hi))
	return from, to
}
