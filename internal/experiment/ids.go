package experiment

import "github.com/google/uuid"

func NewExperimentID() string {
	return "exp-" + uuid.NewString()
}

func NewEventID() string {
	return "event-" + uuid.NewString()
}
