package rules

import (
	"fmt"
	"strings"
)

// Describe renders a one sentence preview of a rule from its raw parameters, falling back to placeholders
func Describe(rule Rule) string {
	template, ok := templateOf(rule)
	if !ok {
		return fmt.Sprintf("%v: Custom rule configuration", rule.Name)
	}

	param := func(label, fallback string) string {
		value, ok := rule.Param(label)
		if !ok || blank(value) {
			return fallback
		}
		return fmt.Sprint(value)
	}

	switch template.Id {
	case MaxDailyHoursTemplate:
		applyTo := param("Apply To", "All Teachers")
		if applyTo == "Specific Teacher" {
			applyTo = param("Teacher", "Selected Teacher")
		}
		return fmt.Sprintf("%v must not teach more than %v hours per day", applyTo, param("Max Hours", "6"))
	case TeacherAvailabilityTemplate:
		return fmt.Sprintf("%v is kept free on %v during %v", param("Teacher", "Selected Teacher"), param("Day", "Selected Day"), param("Time Slot", "Selected Period"))
	case SubjectSpacingTemplate:
		return fmt.Sprintf("%v classes must have at least %v %v gap between them", param("Subject", "Selected Subject"), param("Min Gap", "1"), strings.ToLower(param("Unit", "Periods")))
	case ConsecutivePeriodsTemplate:
		sameDay := ""
		if value, ok := rule.Param("Same Day"); !ok || fmt.Sprint(value) == "true" {
			sameDay = " on the same day"
		}
		return fmt.Sprintf("%v should have %v consecutive periods%v", param("Subject", "Selected Subject"), param("Count", "2"), sameDay)
	case NoFirstPeriodTemplate:
		return fmt.Sprintf("%v should not be scheduled in the first period", param("Subject", "Selected Subject"))
	case SubjectInPeriodTemplate:
		return fmt.Sprintf("%v is scheduled in period %v", param("Subject", "Selected Subject"), param("Period", "1"))
	case TeacherBreakTemplate:
		return fmt.Sprintf("%v must have at least %v %v break between classes", param("Teacher", "Every teacher"), param("Min Break", "30"), strings.ToLower(param("Unit", "Minutes")))
	case LabBookingTemplate:
		return fmt.Sprintf("%v requires %v for %v consecutive periods", param("Subject", "Selected Subject"), param("Lab", "Selected Lab"), param("Duration", "2"))
	case ClassPriorityTemplate:
		return fmt.Sprintf("%v has %v priority for scheduling", param("Class", "Selected Class"), strings.ToLower(param("Priority", "Medium")))
	}
	return fmt.Sprintf("%v: Rule configuration needed", rule.Name)
}

// Summary lists every rule sentence followed by the logical connections between rules
func Summary(graph Graph) string {
	if len(graph.Rules) == 0 {
		return "No rules defined yet."
	}

	var builder strings.Builder
	names := make(map[string]string, len(graph.Rules))
	for i, rule := range graph.Rules {
		names[rule.Id] = rule.Name
		fmt.Fprintf(&builder, "%d. %v\n", i+1, Describe(rule))
	}

	if len(graph.Connections) > 0 {
		builder.WriteString("\nRule connections:\n")
		for _, connection := range graph.Connections {
			fmt.Fprintf(&builder, "- %v %v %v\n", names[connection.From], strings.ToUpper(string(connection.Operator)), names[connection.To])
		}
	}
	return builder.String()
}
