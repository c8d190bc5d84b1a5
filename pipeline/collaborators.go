package pipeline

import (
	"context"
	"errors"

	"github.com/bagofwords1/bagofwords-sub001/sandbox"
)

// ErrNoCandidates is returned by a CandidateGenerator with nothing to offer.
var ErrNoCandidates = errors.New("no candidate programs")

// GenerationContext is the opaque input a CodeGenerator works from.
type GenerationContext struct {
	Prompt       string            `json:"prompt,omitempty"`
	Schemas      string            `json:"schemas,omitempty"`
	Instructions []string          `json:"instructions,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// CodeGenerator produces a program. It is called once per attempt with the
// history of every earlier attempt.
type CodeGenerator interface {
	Generate(ctx context.Context, gen GenerationContext, hist History) (string, error)
}

// GeneratorFunc adapts a function to CodeGenerator.
type GeneratorFunc func(ctx context.Context, gen GenerationContext, hist History) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, gen GenerationContext, hist History) (string, error) {
	return f(ctx, gen, hist)
}

// Verdict is a validator's judgement of a program.
type Verdict struct {
	Valid     bool   `json:"valid"`
	Reasoning string `json:"reasoning"`
}

// Validator judges a program before it runs.
type Validator interface {
	Validate(ctx context.Context, code string, gen GenerationContext) (Verdict, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, code string, gen GenerationContext) (Verdict, error)

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, code string, gen GenerationContext) (Verdict, error) {
	return f(ctx, code, gen)
}

// Executor runs a program against the injected handles.
type Executor interface {
	Execute(ctx context.Context, code string, handles sandbox.Handles) (sandbox.Result, error)
}

// CandidateGenerator returns a fixed list of programs supplied up front.
// Attempt k receives candidate min(k, n-1).
type CandidateGenerator struct {
	candidates []string
}

// NewCandidateGenerator creates a CandidateGenerator
func NewCandidateGenerator(candidates ...string) *CandidateGenerator {
	return &CandidateGenerator{candidates: append([]string{}, candidates...)}
}

// Generate returns the candidate for the next attempt.
func (g *CandidateGenerator) Generate(_ context.Context, _ GenerationContext, hist History) (string, error) {
	if len(g.candidates) == 0 {
		return "", ErrNoCandidates
	}
	return g.candidates[min(len(hist.Attempts), len(g.candidates)-1)], nil
}

// StaticValidator adapts a sandbox.StaticValidator to Validator.
func StaticValidator(v *sandbox.StaticValidator) Validator {
	return ValidatorFunc(func(_ context.Context, code string, _ GenerationContext) (Verdict, error) {
		res := v.Check(code)
		return Verdict{Valid: res.Valid, Reasoning: res.Reasoning()}, nil
	})
}
