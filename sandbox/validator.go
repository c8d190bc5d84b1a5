package sandbox

import (
	"fmt"
	"strings"

	"go.starlark.net/syntax"
)

// DefaultMaxCodeBytes is used when a StaticValidator is built with a
// non-positive limit.
const DefaultMaxCodeBytes = 64 * 1024

// CheckResult is the outcome of a static check.
type CheckResult struct {
	Valid  bool
	Errors []string
}

// Reasoning joins the check errors into a single message.
func (r CheckResult) Reasoning() string {
	return strings.Join(r.Errors, "; ")
}

// StaticValidator inspects a program without running it.
type StaticValidator struct {
	maxCodeBytes int
}

// NewStaticValidator creates a StaticValidator
func NewStaticValidator(maxCodeBytes int) *StaticValidator {
	if maxCodeBytes <= 0 {
		maxCodeBytes = DefaultMaxCodeBytes
	}
	return &StaticValidator{maxCodeBytes: maxCodeBytes}
}

// Check parses code and reports every structural problem found.
func (v *StaticValidator) Check(code string) CheckResult {
	if strings.TrimSpace(code) == "" {
		return CheckResult{Errors: []string{"code is empty"}}
	}
	if len(code) > v.maxCodeBytes {
		return CheckResult{Errors: []string{
			fmt.Sprintf("code is %d bytes, exceeds limit of %d bytes", len(code), v.maxCodeBytes),
		}}
	}

	f, err := fileOptions.Parse(Filename, code, 0)
	if err != nil {
		return CheckResult{Errors: []string{fmt.Sprintf("syntax error: %v", err)}}
	}

	var errs []string
	found := false
	for _, stmt := range f.Stmts {
		switch s := stmt.(type) {
		case *syntax.LoadStmt:
			line, _ := s.Span()
			errs = append(errs, fmt.Sprintf("line %d: load statements are not allowed", line.Line))
		case *syntax.DefStmt:
			if s.Name.Name != EntryPoint {
				continue
			}
			found = true
			if len(s.Params) != 2 {
				errs = append(errs, fmt.Sprintf("line %d: %s must take exactly 2 parameters (sources, files), got %d",
					s.Def.Line, EntryPoint, len(s.Params)))
			}
		}
	}
	if !found {
		errs = append(errs, fmt.Sprintf("missing top-level function %s(sources, files)", EntryPoint))
	}

	return CheckResult{Valid: len(errs) == 0, Errors: errs}
}
