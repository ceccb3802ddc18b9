// Package builtin answers the intents that never need the language model.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"brothereye/internal/nlu"
	"brothereye/internal/weather"
)

var ErrLookup = errors.New("external lookup failed")

type WeatherProvider interface {
	Lookup(ctx context.Context, location string) (weather.Report, error)
}

type Handlers struct {
	weather WeatherProvider
	now     func() time.Time
	timeout time.Duration
}

func New(w WeatherProvider) *Handlers {
	return &Handlers{weather: w, now: time.Now, timeout: 10 * time.Second}
}

// WithClock replaces the wall clock.
func (h *Handlers) WithClock(now func() time.Time) *Handlers {
	h.now = now
	return h
}

// Handle always returns text for the user. A non-nil error wraps ErrLookup
// and the text then explains the failure.
func (h *Handlers) Handle(ctx context.Context, res nlu.Result) (string, error) {
	switch res.Intent {
	case nlu.Weather:
		return h.Weather(ctx, res.Slots[nlu.SlotLocation])
	case nlu.Time:
		return h.Time(), nil
	case nlu.Date:
		return h.Date(res.Slots[nlu.SlotUnit]), nil
	}
	return "", fmt.Errorf("no builtin handler for %s", res.Intent)
}

func (h *Handlers) Weather(ctx context.Context, location string) (string, error) {
	failed := fmt.Sprintf("could not retrieve weather for %s", location)
	if h.weather == nil {
		return failed, fmt.Errorf("%w: no weather provider", ErrLookup)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	r, err := h.weather.Lookup(ctx, location)
	if err != nil {
		return failed, fmt.Errorf("%w: weather for %s: %v", ErrLookup, location, err)
	}
	return FormatWeather(location, r), nil
}

// FormatWeather always names the location and reports in °F.
func FormatWeather(location string, r weather.Report) string {
	text := fmt.Sprintf("It's %s°F in %s", deg(r.CurrentTempF), location)
	if r.Condition != "" {
		text = fmt.Sprintf("It's %s°F and %s in %s", deg(r.CurrentTempF), strings.ToLower(r.Condition), location)
	}
	return fmt.Sprintf("%s, with a high of %s°F and a low of %s°F.", text, deg(r.HighF), deg(r.LowF))
}

func deg(v float64) string {
	return strconv.Itoa(int(math.Round(v)))
}

func (h *Handlers) Time() string {
	return "It's " + h.now().Format("3:04 PM") + "."
}

func (h *Handlers) Date(unit string) string {
	now := h.now()
	switch unit {
	case "day":
		return "It's " + now.Format("Monday") + "."
	case "month":
		return "It's " + now.Format("January") + "."
	case "year":
		return "It's " + now.Format("2006") + "."
	}
	return "Today is " + now.Format("Monday, January 2, 2006") + "."
}
