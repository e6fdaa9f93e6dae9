package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

var ErrDanglingReference = errors.New("dangling reference")

type ErrorCode string

const (
	CodeDanglingReference  ErrorCode = "dangling-reference"
	CodeMalformedParameter ErrorCode = "malformed-parameter"
	CodeOutOfRange         ErrorCode = "out-of-range"
	CodeUnknownTemplate    ErrorCode = "unknown-template"
	CodeDuplicateRule      ErrorCode = "duplicate-rule"
	CodeUnknownEndpoint    ErrorCode = "unknown-endpoint"
	CodeSelfConnection     ErrorCode = "self-connection"
	CodeUnknownOperator    ErrorCode = "unknown-operator"
	CodeCycle              ErrorCode = "cycle"
)

// ConfigError is a problem in the rule graph the author has to fix before evaluation or generation
type ConfigError struct {
	Rule       string    `json:"rule,omitempty"`
	Connection string    `json:"connection,omitempty"`
	Param      string    `json:"param,omitempty"`
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
}

func (err ConfigError) Error() string {
	var builder strings.Builder
	if err.Rule != "" {
		fmt.Fprintf(&builder, "rule %q: ", err.Rule)
	}
	if err.Connection != "" {
		fmt.Fprintf(&builder, "connection %q: ", err.Connection)
	}
	if err.Param != "" {
		fmt.Fprintf(&builder, "parameter %q: ", err.Param)
	}
	builder.WriteString(err.Message)
	return builder.String()
}

func (err ConfigError) Unwrap() error {
	if err.Code == CodeDanglingReference {
		return ErrDanglingReference
	}
	return nil
}

type ConfigErrors []ConfigError

func (errs ConfigErrors) Error() string {
	messages := lo.Map(errs, func(err ConfigError, _ int) string { return err.Error() })
	return fmt.Sprintf("invalid rule graph: %v", strings.Join(messages, "; "))
}

func (errs ConfigErrors) Unwrap() []error {
	return lo.Map(errs, func(err ConfigError, _ int) error { return err })
}
