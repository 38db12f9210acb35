package store

import "github.com/ohjeongjoo/informanager/internal/models"

var transitionMap = map[string][]string{
	models.StatusMeeting:   {models.StatusWaiting},
	models.StatusCompleted: {models.StatusWaiting, models.StatusMeeting},
	models.StatusWaiting:   {models.StatusMeeting},
}

// ValidTransition reports whether a visitor may move from one status to
// another. Completed is terminal.
func ValidTransition(from, to string) bool {
	if from == to {
		return false
	}
	allowed, ok := transitionMap[to]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}
