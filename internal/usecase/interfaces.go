package usecase

import "time"

// Clock is injected so deadline rules can be tested without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

var SystemClock Clock = systemClock{}
