package boardsync

import "math"

// Stats summarizes the active board. Derived on read, never stored.
type Stats struct {
	Total             int `json:"total"`
	Completed         int `json:"completed"`
	TotalPoints       int `json:"totalPoints"`
	CompletedPoints   int `json:"completedPoints"`
	CompletionPercent int `json:"completionPercent"`
}

// Stats computes totals over the active board. A card counts as completed
// when its list is a "done" stage, using the same predicate as the move
// policy. The completion percentage prefers the point ratio whenever any
// points exist, falling back to the card-count ratio.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	board := e.state.Board(e.state.ActiveBoardID)
	if board == nil {
		return Stats{}
	}

	var stats Stats
	for _, l := range board.Lists {
		done := l.IsDone()
		for _, c := range l.Cards {
			stats.Total++
			stats.TotalPoints += c.Points
			if done {
				stats.Completed++
				stats.CompletedPoints += c.Points
			}
		}
	}

	switch {
	case stats.TotalPoints > 0:
		stats.CompletionPercent = int(math.Round(float64(stats.CompletedPoints) / float64(stats.TotalPoints) * 100))
	case stats.Total > 0:
		stats.CompletionPercent = int(math.Round(float64(stats.Completed) / float64(stats.Total) * 100))
	}

	return stats
}
