package evaluator

import (
	"slices"

	"github.com/limaJavier/timetable-engine/pkg/rules"
)

type Profile string

const (
	ProfileBalanced         Profile = "balanced"
	ProfileTeacherPriority  Profile = "teacherPriority"
	ProfileRoomOptimization Profile = "roomOptimization"
	ProfileTimeEfficiency   Profile = "timeEfficiency"
)

var Profiles = []Profile{ProfileTeacherPriority, ProfileBalanced, ProfileRoomOptimization, ProfileTimeEfficiency}

func (profile Profile) Valid() bool {
	return slices.Contains(Profiles, profile)
}

const HardWeight = 100.0

var severityWeights = map[rules.Severity]float64{
	rules.SeverityHigh:   10,
	rules.SeverityMedium: 4,
	rules.SeverityLow:    1,
}

// Weight scores a violation under the profile. Hard violations weigh the same under every profile.
func (profile Profile) Weight(violation Violation) float64 {
	if violation.Hard {
		return HardWeight
	}
	return severityWeights[violation.Severity] * profile.multiplier(violation.Kind, violation.Template)
}

func (profile Profile) multiplier(kind rules.Kind, template string) float64 {
	switch profile {
	case ProfileTeacherPriority:
		if kind == rules.KindTeacher {
			return 3
		}
	case ProfileRoomOptimization:
		if kind == KindRoom || template == rules.LabBookingTemplate {
			return 3
		}
	case ProfileTimeEfficiency:
		switch kind {
		case rules.KindTime:
			return 3
		case rules.KindGrouping:
			return 2
		}
	}
	return 1
}
