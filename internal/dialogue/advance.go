// internal/dialogue/advance.go
package dialogue

import "time"

// Advance computes the entire next state for one completed turn in a
// single step: append the turn, move the turn index, open the next
// round on wrap-around, and mark completion when the round counter
// would pass MaxRounds.
//
// The scheduler persists the result before emitting the turn-complete
// event, and the client mirror replays the identical function, so both
// sides always agree on when a round closes and when the dialogue ends.
// Cost totals are not touched here; see the cost package.
func Advance(snap Snapshot, turn Turn, now time.Time) Snapshot {
	next := snap.Clone()

	// The round object for the current round must already exist; it is
	// created at dialogue start (round 1) or by the previous wrap. The
	// append below would otherwise race ahead of the round list.
	idx := roundIndex(next.Rounds, next.CurrentRound)
	if idx < 0 {
		next.Rounds = append(next.Rounds, Round{Number: next.CurrentRound, StartedAt: now})
		idx = len(next.Rounds) - 1
	}
	next.Rounds[idx].Turns = append(next.Rounds[idx].Turns, turn)

	nextTurn := (next.CurrentTurn + 1) % len(next.Participants)
	if nextTurn == 0 {
		nextRound := next.CurrentRound + 1
		if nextRound > next.MaxRounds {
			next.Status = StatusCompleted
		} else {
			next.CurrentRound = nextRound
			next.Rounds = append(next.Rounds, Round{Number: nextRound, StartedAt: now})
		}
	}
	next.CurrentTurn = nextTurn
	next.UpdatedAt = now

	return next
}

// RemainingTurns reports how many turns are still to run. Zero means
// the dialogue is over (or will be declared over by the next Advance).
func (s Snapshot) RemainingTurns() int {
	if s.Status == StatusCompleted {
		return 0
	}
	total := s.MaxRounds * len(s.Participants)
	done := (s.CurrentRound-1)*len(s.Participants) + s.CurrentTurn
	if done >= total {
		return 0
	}
	return total - done
}

func roundIndex(rounds []Round, number int) int {
	for i := range rounds {
		if rounds[i].Number == number {
			return i
		}
	}
	return -1
}
