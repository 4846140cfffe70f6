// Package schedule decides whether a persona is awake at a given instant.
//
// A persona is awake during its main window [start, end) in its own time
// zone, where start > end wraps past midnight, and additionally during a
// small set of surprise hours derived from its id and the local date. Two
// surprise hours are drawn on weekdays and four on Saturday and Sunday.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode/utf16"

	"github.com/rs/zerolog/log"

	"github.com/notsingle/pkg/models"
)

const (
	weekdaySurpriseHours = 2
	weekendSurpriseHours = 4
)

// IsAwake reports whether the persona should run a cycle at now. Any error
// evaluating the schedule fails open.
func IsAwake(hours models.ActiveHours, personaID string, now time.Time) bool {
	awake, err := Evaluate(hours, personaID, now)
	if err != nil {
		log.Warn().Err(err).
			Str("persona_id", personaID).
			Str("timezone", hours.Timezone).
			Msg("schedule check failed, treating persona as awake")
		return true
	}
	return awake
}

// Evaluate is IsAwake without the fail-open fallback
func Evaluate(hours models.ActiveHours, personaID string, now time.Time) (bool, error) {
	if hours.Start < 0 || hours.Start > 23 || hours.End < 0 || hours.End > 23 {
		return false, fmt.Errorf("active hours out of range: start=%d end=%d", hours.Start, hours.End)
	}
	loc, err := LoadLocation(hours.Timezone)
	if err != nil {
		return false, err
	}

	local := now.In(loc)
	if InMainWindow(hours.Start, hours.End, local.Hour()) {
		return true, nil
	}
	if personaID == "" {
		return false, nil
	}
	for _, h := range SurpriseHours(personaID, now, loc) {
		if h == local.Hour() {
			return true, nil
		}
	}
	return false, nil
}

// InMainWindow reports whether hour falls in [start, end), wrapping past midnight when start > end
func InMainWindow(start, end, hour int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// SurpriseHours returns the surprise awake hours of personaID for the local date of now in loc
func SurpriseHours(personaID string, now time.Time, loc *time.Location) []int {
	local := now.In(loc)
	seed := personaID + local.Format("2006-01-02")

	n := weekdaySurpriseHours
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		n = weekendSurpriseHours
	}

	out := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, int(Hash(seed+"hour"+strconv.Itoa(i))%24))
	}
	return out
}

// Hash is the 32-bit polynomial rolling hash h = h*31 + c over the UTF-16
// code units of s, with two's complement wraparound, returning |h|.
func Hash(s string) int64 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}

var offsetZone = regexp.MustCompile(`^(?:UTC|GMT)([+-])(\d{1,2})(?::?(\d{2}))?$`)

// LoadLocation resolves an IANA zone name or a fixed offset such as "UTC+5" or "UTC-03:30"
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	if m := offsetZone.FindStringSubmatch(strings.ToUpper(name)); m != nil {
		hrs, _ := strconv.Atoi(m[2])
		mins := 0
		if m[3] != "" {
			mins, _ = strconv.Atoi(m[3])
		}
		if hrs > 14 || mins > 59 {
			return nil, fmt.Errorf("invalid utc offset %q", name)
		}
		secs := hrs*3600 + mins*60
		if m[1] == "-" {
			secs = -secs
		}
		return time.FixedZone(name, secs), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}
