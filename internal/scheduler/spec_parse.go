package scheduler

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SpecKind describes the normalized kind of a schedule string.
type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecDelay
	SpecClock
)

// ParsedSpec is a parsed deferral. A campaign armed with it fires once, at
// the spec's next activation from the moment of arming.
//
// Supported forms:
//   - Cron (crontab.guru-style): "0 9 * * 1", "@daily" (next activation only)
//   - Delay duration: "45m", "2h30m"
//   - Clock HH:MM: "09:30" (next occurrence of that wall-clock time)
//
// Optional prefixes "cron:", "in:" and "at:" force the respective parse.
type ParsedSpec struct {
	Kind  SpecKind
	Cron  string
	Delay time.Duration
	Clock struct{ Hour, Minute int }
}

var reClock = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return ParsedSpec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return parseCron(expr)
	case strings.HasPrefix(low, "in:"):
		return parseDelay(strings.TrimSpace(s[len("in:"):]))
	case strings.HasPrefix(low, "at:"):
		return parseClock(strings.TrimSpace(s[len("at:"):]))
	}

	// Heuristics: whitespace or leading '@' means cron.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	if reClock.MatchString(s) {
		return parseClock(s)
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return ParsedSpec{}, fmt.Errorf("delay must be > 0")
		}
		return ParsedSpec{Kind: SpecDelay, Delay: d}, nil
	}

	return ParsedSpec{}, fmt.Errorf(
		"invalid schedule %q (use cron like '0 9 * * 1', HH:MM like '09:30', or duration like '45m')",
		raw,
	)
}

func parseCron(expr string) (ParsedSpec, error) {
	if _, err := cronParser.Parse(expr); err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return ParsedSpec{Kind: SpecCron, Cron: expr}, nil
}

func parseDelay(v string) (ParsedSpec, error) {
	if v == "" {
		return ParsedSpec{}, fmt.Errorf("delay required")
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid delay %q (use Go duration like '45m'/'2h30m')", v)
	}
	if d <= 0 {
		return ParsedSpec{}, fmt.Errorf("delay must be > 0")
	}
	return ParsedSpec{Kind: SpecDelay, Delay: d}, nil
}

func parseClock(v string) (ParsedSpec, error) {
	m := reClock.FindStringSubmatch(v)
	if len(m) != 3 {
		return ParsedSpec{}, fmt.Errorf("invalid HH:MM %q", v)
	}
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if hh > 23 {
		return ParsedSpec{}, fmt.Errorf("invalid hours in %q", v)
	}
	if mm > 59 {
		return ParsedSpec{}, fmt.Errorf("invalid minutes in %q", v)
	}
	ps := ParsedSpec{Kind: SpecClock}
	ps.Clock.Hour, ps.Clock.Minute = hh, mm
	return ps, nil
}

// NextFire computes the single activation instant for the spec, relative
// to now in loc.
func (p ParsedSpec) NextFire(now time.Time, loc *time.Location) (time.Time, error) {
	switch p.Kind {
	case SpecDelay:
		return now.Add(p.Delay), nil
	case SpecClock:
		local := now.In(loc)
		fire := time.Date(local.Year(), local.Month(), local.Day(), p.Clock.Hour, p.Clock.Minute, 0, 0, loc)
		if !fire.After(now) {
			fire = fire.AddDate(0, 0, 1)
		}
		return fire, nil
	case SpecCron:
		sch, err := cronParser.Parse(p.Cron)
		if err != nil {
			return time.Time{}, err
		}
		return sch.Next(now.In(loc)), nil
	}
	return time.Time{}, fmt.Errorf("unknown schedule kind %d", p.Kind)
}
