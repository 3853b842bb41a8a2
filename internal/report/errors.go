package report

import "errors"

// ErrNoExecution is returned when a report carries no execution.
var ErrNoExecution = errors.New("report has no execution")
