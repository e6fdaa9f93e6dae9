package sat

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SATSolution holds one signed literal per variable: v when the variable is true, -v when it is false
type SATSolution []int64

type SAT struct {
	Variables uint64
	Clauses   [][]int64
}

func (s SAT) ToDIMACS() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "p cnf %d %d\n", s.Variables, len(s.Clauses))
	for _, clause := range s.Clauses {
		for _, literal := range clause {
			fmt.Fprintf(&builder, "%d ", literal)
		}
		builder.WriteString("0\n")
	}
	return builder.String()
}

// ParseDIMACS reads a CNF instance; comment lines are skipped and a clause ends at its first zero
func ParseDIMACS(reader io.Reader) (SAT, error) {
	var instance SAT
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "c") || strings.HasPrefix(line, "%") {
			continue
		}
		if strings.HasPrefix(line, "p cnf") {
			parts := strings.Fields(line)
			if len(parts) != 4 {
				return SAT{}, fmt.Errorf("invalid problem line: %s", line)
			}
			variables, err := strconv.ParseUint(parts[2], 10, 64)
			if err != nil {
				return SAT{}, fmt.Errorf("invalid variable count: %w", err)
			}
			instance.Variables = variables
			continue
		}

		clause := make([]int64, 0)
		for _, field := range strings.Fields(line) {
			literal, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return SAT{}, fmt.Errorf("invalid literal '%s': %w", field, err)
			}
			if literal == 0 {
				break
			}
			clause = append(clause, literal)
		}
		if len(clause) > 0 {
			instance.Clauses = append(instance.Clauses, clause)
		}
	}

	if err := scanner.Err(); err != nil {
		return SAT{}, fmt.Errorf("error reading instance: %w", err)
	}
	return instance, nil
}

// True reports whether the solution sets the variable
func (solution SATSolution) True(variable uint64) bool {
	index := int(variable) - 1
	return index >= 0 && index < len(solution) && solution[index] > 0
}
