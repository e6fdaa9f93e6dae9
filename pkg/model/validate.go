package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// InvalidDomainError reports every inconsistency found in the domain input
type InvalidDomainError struct {
	Issues []string
}

func (err *InvalidDomainError) Error() string {
	return fmt.Sprintf("invalid domain: %v", strings.Join(err.Issues, "; "))
}

var validate = validator.New()

func NewDomain(rawDomain RawDomain) (*Domain, error) {
	issues := make([]string, 0)

	//** Shape checks
	if err := validate.Struct(rawDomain); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return nil, err
		}
		for _, fieldError := range validationErrors {
			issues = append(issues, fmt.Sprintf("%v fails %q (value %v)", fieldError.Namespace(), fieldError.Tag(), fieldError.Value()))
		}
	}

	domain := &Domain{
		PeriodsPerDay: rawDomain.PeriodsPerDay,
		PeriodMinutes: rawDomain.PeriodMinutes,
		Subjects:      rawDomain.Subjects,
		Teachers:      rawDomain.Teachers,
		Classes:       rawDomain.Classes,
		Rooms:         rawDomain.Rooms,
		Breaks:        rawDomain.Breaks,
		subjects:      make(map[string]int),
		teachers:      make(map[string]int),
		classes:       make(map[string]int),
		rooms:         make(map[string]int),
		breaks:        make(map[Slot]bool),
		unavailable:   make(map[string]map[Slot]bool),
		qualified:     make(map[string]map[string]bool),
		requirements:  make(map[string][]Requirement),
	}
	if domain.PeriodMinutes == 0 {
		domain.PeriodMinutes = DefaultPeriodMinutes
	}

	//** Identity indices
	index := func(kind string, ids []string, target map[string]int) {
		for i, id := range ids {
			if _, ok := target[id]; ok {
				issues = append(issues, fmt.Sprintf("duplicate %v id %q", kind, id))
				continue
			}
			target[id] = i
		}
	}
	index("subject", lo.Map(domain.Subjects, func(subject Subject, _ int) string { return subject.Id }), domain.subjects)
	index("teacher", lo.Map(domain.Teachers, func(teacher Teacher, _ int) string { return teacher.Id }), domain.teachers)
	index("class", lo.Map(domain.Classes, func(class ClassSection, _ int) string { return class.Id }), domain.classes)
	index("room", lo.Map(domain.Rooms, func(room Room, _ int) string { return room.Id }), domain.rooms)

	//** Breaks
	for _, slot := range domain.Breaks {
		if !domain.InRange(slot) {
			issues = append(issues, fmt.Sprintf("break %v lies outside the week grid", slot))
			continue
		}
		domain.breaks[slot] = true
	}

	//** Teachers
	for _, teacher := range domain.Teachers {
		domain.qualified[teacher.Id] = make(map[string]bool)
		for _, subject := range teacher.Subjects {
			if !domain.HasSubject(subject) {
				issues = append(issues, fmt.Sprintf("teacher %q is qualified for unknown subject %q", teacher.Id, subject))
				continue
			}
			domain.qualified[teacher.Id][subject] = true
		}

		domain.unavailable[teacher.Id] = make(map[Slot]bool)
		for _, slot := range teacher.Unavailable {
			if !domain.InRange(slot) {
				issues = append(issues, fmt.Sprintf("teacher %q is unavailable at %v which lies outside the week grid", teacher.Id, slot))
				continue
			}
			domain.unavailable[teacher.Id][slot] = true
		}
	}

	//** Classes
	for _, class := range domain.Classes {
		if class.Homeroom != "" && !domain.HasTeacher(class.Homeroom) {
			issues = append(issues, fmt.Sprintf("class %q has unknown homeroom teacher %q", class.Id, class.Homeroom))
		}

		seen := make(map[string]bool)
		requirements := make([]Requirement, 0, len(class.Requirements))
		for _, requirement := range class.Requirements {
			subject, ok := domain.Subject(requirement.Subject)
			if !ok {
				issues = append(issues, fmt.Sprintf("class %q requires unknown subject %q", class.Id, requirement.Subject))
				continue
			}
			if seen[requirement.Subject] {
				issues = append(issues, fmt.Sprintf("class %q requires subject %q more than once", class.Id, requirement.Subject))
				continue
			}
			seen[requirement.Subject] = true

			if requirement.Periods == 0 {
				requirement.Periods = subject.WeeklyPeriods
			}
			if requirement.Periods == 0 {
				if !requirement.Elective {
					issues = append(issues, fmt.Sprintf("class %q requires subject %q with zero weekly periods", class.Id, requirement.Subject))
				}
				continue
			}
			requirements = append(requirements, requirement)
		}
		domain.requirements[class.Id] = requirements
	}

	if len(issues) > 0 {
		return nil, &InvalidDomainError{Issues: issues}
	}
	return domain, nil
}
