package nextrun

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrInvalidScheduleExpression is returned when a cron expression cannot be parsed
	ErrInvalidScheduleExpression = errors.New("invalid schedule expression")

	// ErrInvalidTimezone is returned when the timezone is not a known IANA location
	ErrInvalidTimezone = fmt.Errorf("%w: unknown timezone", ErrInvalidScheduleExpression)
)

// Calculator maps a schedule expression to its next trigger instant
type Calculator interface {
	Next(expr, timezone string, after time.Time) (time.Time, error)
	Validate(expr, timezone string) error
}

// CronCalculator evaluates standard 5-field cron expressions
type CronCalculator struct {
	parser cron.Parser
}

func NewCronCalculator() *CronCalculator {
	return &CronCalculator{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Next returns the first activation strictly after the given instant, evaluated in timezone
func (c *CronCalculator) Next(expr, timezone string, after time.Time) (time.Time, error) {
	schedule, loc, err := c.parse(expr, timezone)
	if err != nil {
		return time.Time{}, err
	}

	next := schedule.Next(after.In(loc))
	if next.IsZero() {
		// e.g. "0 0 30 2 *" never fires
		return time.Time{}, fmt.Errorf("%w: %q never activates", ErrInvalidScheduleExpression, expr)
	}
	return next, nil
}

// Validate checks the expression and timezone without computing a time
func (c *CronCalculator) Validate(expr, timezone string) error {
	_, err := c.Next(expr, timezone, time.Now())
	return err
}

func (c *CronCalculator) parse(expr, timezone string) (cron.Schedule, *time.Location, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil, fmt.Errorf("%w: empty expression", ErrInvalidScheduleExpression)
	}
	// Timezone is carried separately, inline prefixes would silently override it.
	if strings.HasPrefix(expr, "TZ=") || strings.HasPrefix(expr, "CRON_TZ=") {
		return nil, nil, fmt.Errorf("%w: inline timezone not allowed", ErrInvalidScheduleExpression)
	}

	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, nil, fmt.Errorf("%w %q", ErrInvalidTimezone, timezone)
		}
		loc = l
	}

	schedule, err := c.parser.Parse(expr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidScheduleExpression, err)
	}
	return schedule, loc, nil
}
