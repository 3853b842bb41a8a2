package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Named frequencies accepted in scout configurations.
const (
	FrequencyHourly = "hourly"
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
)

// frequencyParser accepts standard 5-field cron expressions and descriptors like "@daily".
var frequencyParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseFrequency parses a scout frequency into a schedule.
// Named frequencies map to their cron descriptors.
func ParseFrequency(freq string) (cron.Schedule, error) {
	spec := strings.TrimSpace(freq)
	switch strings.ToLower(spec) {
	case FrequencyHourly:
		spec = "@hourly"
	case FrequencyDaily:
		spec = "@daily"
	case FrequencyWeekly:
		spec = "@weekly"
	case "":
		return nil, fmt.Errorf("empty frequency")
	}

	schedule, err := frequencyParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid frequency %q: %w", freq, err)
	}
	return schedule, nil
}

// NextRun returns when a scout with the given frequency is next due after t.
func NextRun(freq string, t time.Time) (time.Time, error) {
	schedule, err := ParseFrequency(freq)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(t), nil
}
