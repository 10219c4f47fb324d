package feeding

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var ErrInvalidQuantity = errors.New("Quantidade inválida. Exemplo: /comida 120 ou /comida 120g 07:30")

var quantityRe = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*(g|kg)?$`)

// Entry is a parsed /comida argument.
type Entry struct {
	Grams       float64
	Time        time.Time
	TimeChanged bool // an explicit HH:MM was given
}

// ParseEntry parses "<qty>[g|kg] [HH:MM]". Without HH:MM the feeding time is
// msgTime. A clock later than msgTime on the same local day means yesterday.
func ParseEntry(args string, msgTime time.Time, loc *time.Location) (Entry, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return Entry{}, ErrInvalidQuantity
	}
	// Allow "120 g" as well as "120g".
	if len(fields) > 1 && (strings.EqualFold(fields[1], "g") || strings.EqualFold(fields[1], "kg")) {
		fields = append([]string{fields[0] + fields[1]}, fields[2:]...)
	}
	if len(fields) > 2 {
		return Entry{}, ErrInvalidQuantity
	}

	mm := quantityRe.FindStringSubmatch(strings.ToLower(fields[0]))
	if mm == nil {
		return Entry{}, ErrInvalidQuantity
	}
	q, err := strconv.ParseFloat(strings.Replace(mm[1], ",", ".", 1), 64)
	if err != nil || q <= 0 {
		return Entry{}, ErrInvalidQuantity
	}
	if mm[2] == "kg" {
		q *= 1000
	}

	e := Entry{Grams: q, Time: msgTime}
	if len(fields) == 2 {
		h, m, err := ParseClock(fields[1])
		if err != nil {
			return Entry{}, err
		}
		if loc == nil {
			loc = time.UTC
		}
		local := msgTime.In(loc)
		at := time.Date(local.Year(), local.Month(), local.Day(), h, m, 0, 0, loc)
		if at.After(msgTime) {
			at = time.Date(local.Year(), local.Month(), local.Day()-1, h, m, 0, 0, loc)
		}
		e.Time = at
		e.TimeChanged = true
	}
	return e, nil
}

// FormatGrams renders a quantity for chat messages, e.g. "1,250.5 g".
func FormatGrams(q float64) string {
	return humanize.CommafWithDigits(q, 1) + " g"
}
