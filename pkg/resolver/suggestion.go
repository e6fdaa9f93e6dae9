package resolver

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/limaJavier/timetable-engine/pkg/model"
)

type Type string

const (
	Reschedule   Type = "reschedule"
	Substitute   Type = "substitute"
	RoomChange   Type = "room_change"
	Redistribute Type = "redistribute"
)

// Suggestion replaces one assignment of the grid version Base. Confidence is a heuristic in [0, 100]; Resolved and
// Introduced count the violations the mutation removes and adds.
type Suggestion struct {
	Id          uuid.UUID        `json:"id" mapstructure:"id"`
	Type        Type             `json:"type" mapstructure:"type"`
	Base        uuid.UUID        `json:"base" mapstructure:"base"`
	From        model.Assignment `json:"from" mapstructure:"from"`
	To          model.Assignment `json:"to" mapstructure:"to"`
	Confidence  int              `json:"confidence" mapstructure:"confidence"`
	Resolved    int              `json:"resolved" mapstructure:"resolved"`
	Introduced  int              `json:"introduced" mapstructure:"introduced"`
	Impact      string           `json:"impact" mapstructure:"impact"`
	Description string           `json:"description" mapstructure:"description"`
}

// suggestionId derives the id from the base version and the mutation, so proposing twice yields equal suggestions
func suggestionId(base uuid.UUID, kind Type, from, to model.Assignment) uuid.UUID {
	return uuid.NewSHA1(base, []byte(fmt.Sprintf("%v|%v|%v", kind, from, to)))
}

func compareSuggestions(a, b Suggestion) int {
	if a.Confidence != b.Confidence {
		return cmp.Compare(b.Confidence, a.Confidence)
	}
	if a.Introduced != b.Introduced {
		return cmp.Compare(a.Introduced, b.Introduced)
	}
	return strings.Compare(a.Id.String(), b.Id.String())
}

func describe(kind Type, from, to model.Assignment) string {
	switch kind {
	case Substitute:
		return fmt.Sprintf("Let %v teach %v %v at %v instead of %v", to.Teacher, to.Class, to.Subject, to.Slot, from.Teacher)
	case RoomChange:
		return fmt.Sprintf("Move %v %v at %v from %v to %v", from.Class, from.Subject, from.Slot, from.Room, to.Room)
	case Redistribute:
		return fmt.Sprintf("Move one %v period of %v from %v to %v", from.Subject, from.Class, from.Slot.Day, to.Slot)
	default:
		return fmt.Sprintf("Reschedule %v %v from %v to %v in %v", from.Class, from.Subject, from.Slot, to.Slot, to.Room)
	}
}

func impact(resolved, introduced int) string {
	return fmt.Sprintf("resolves %d violation(s), introduces %d", resolved, introduced)
}
