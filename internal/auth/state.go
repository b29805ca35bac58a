package auth

import "fmt"

// State is a step of the login flow. It only lives inside one Login call.
type State int

const (
	NotStarted State = iota
	AwaitingIdentifier
	AwaitingSecret
	AwaitingConfirmation
	Authenticated
	Failed
)

var stateNames = map[State]string{
	NotStarted:           "NotStarted",
	AwaitingIdentifier:   "AwaitingIdentifier",
	AwaitingSecret:       "AwaitingSecret",
	AwaitingConfirmation: "AwaitingConfirmation",
	Authenticated:        "Authenticated",
	Failed:               "Failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Authenticated || s == Failed
}

// transitions lists the states each state may move to. Every non-terminal
// state either advances one step or fails.
var transitions = map[State][]State{
	NotStarted:           {AwaitingIdentifier, Failed},
	AwaitingIdentifier:   {AwaitingSecret, Failed},
	AwaitingSecret:       {AwaitingConfirmation, Failed},
	AwaitingConfirmation: {Authenticated, Failed},
}

// CanTransition reports whether the flow may move from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
