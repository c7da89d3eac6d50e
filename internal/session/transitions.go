// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import "github.com/pdiddy/rapid-minutes/pkg/types"

// transitions lists the legal moves out of each status. Reset to idle is
// handled separately and is legal from anywhere.
var transitions = map[types.SessionStatus][]types.SessionStatus{
	types.StatusIdle:         {types.StatusFileSelected},
	types.StatusFileSelected: {types.StatusUploading},
	types.StatusUploading:    {types.StatusProcessing, types.StatusFileSelected},
	types.StatusProcessing:   {types.StatusCompleted, types.StatusFailed},
	types.StatusCompleted:    nil,
	types.StatusFailed:       nil,
}

// CanTransition reports whether from -> to is a legal single step.
func CanTransition(from, to types.SessionStatus) bool {
	if to == types.StatusIdle {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
