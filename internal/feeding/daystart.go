package feeding

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"petbot/internal/model"
)

// DefaultTimezone is used when /inicio_dia is given without a zone.
const DefaultTimezone = "America/Sao_Paulo"

var ErrInvalidClock = errors.New("horário inválido, use HH:MM")

// StartOfDay is a parsed dayStart: a local time-of-day in a fixed zone.
type StartOfDay struct {
	Hour   int
	Minute int
	Loc    *time.Location
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(m) != 2 || len(h) == 0 || len(h) > 2 {
		return 0, 0, ErrInvalidClock
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, ErrInvalidClock
	}
	return hour, minute, nil
}

// ParseDayStart validates a stored dayStart.
func ParseDayStart(ds model.DayStart) (StartOfDay, error) {
	h, m, err := ParseClock(ds.Time)
	if err != nil {
		return StartOfDay{}, fmt.Errorf("dayStart time %q: %w", ds.Time, err)
	}
	loc, err := time.LoadLocation(ds.Timezone)
	if err != nil || ds.Timezone == "" {
		return StartOfDay{}, fmt.Errorf("dayStart timezone %q: unknown zone", ds.Timezone)
	}
	return StartOfDay{Hour: h, Minute: m, Loc: loc}, nil
}

// NewDayStart builds a normalized dayStart from user input; zone defaults to DefaultTimezone.
func NewDayStart(clock, zone string) (model.DayStart, error) {
	if strings.TrimSpace(zone) == "" {
		zone = DefaultTimezone
	}
	h, m, err := ParseClock(clock)
	if err != nil {
		return model.DayStart{}, err
	}
	ds := model.DayStart{Time: fmt.Sprintf("%02d:%02d", h, m), Timezone: strings.TrimSpace(zone)}
	if _, err := ParseDayStart(ds); err != nil {
		return model.DayStart{}, err
	}
	return ds, nil
}
