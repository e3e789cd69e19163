// Package booking implements the six-step appointment booking wizard.
package booking

import "fmt"

// Step is a wizard step. Values match the displayed step numbers.
type Step int

const (
	StepDateTime Step = iota + 1
	StepDuration
	StepInfo
	StepConfirm
	StepPayment
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepDateTime:
		return "date_time"
	case StepDuration:
		return "duration"
	case StepInfo:
		return "info"
	case StepConfirm:
		return "confirm"
	case StepPayment:
		return "payment"
	case StepSuccess:
		return "success"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Title is the heading shown for a step.
func (s Step) Title() string {
	switch s {
	case StepDateTime:
		return "Date and time"
	case StepDuration:
		return "Duration and price"
	case StepInfo:
		return "Your information"
	case StepConfirm:
		return "Confirmation"
	case StepPayment:
		return "Payment"
	case StepSuccess:
		return "Booked"
	default:
		return s.String()
	}
}

// transitions lists the allowed moves out of each step. Payment and Success
// have no way back.
var transitions = map[Step][]Step{
	StepDateTime: {StepDuration},
	StepDuration: {StepInfo, StepDateTime},
	StepInfo:     {StepConfirm, StepDuration},
	StepConfirm:  {StepPayment, StepInfo},
	StepPayment:  {StepSuccess},
	StepSuccess:  {},
}

// CanTransition checks if a move between steps is allowed.
func CanTransition(from, to Step) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
