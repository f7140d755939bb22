package state

import "slices"

// next lists the steps each state may move to. Returning to idle is always
// allowed and is not listed.
var next = map[State][]State{
	StateIdle: {StateAwaitingRejectReason},
}

func IsTransitionAllowed(from, to State) bool {
	return to == StateIdle || slices.Contains(next[from], to)
}
