package recipe

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRecipeValidation = errors.New("recipe validation failed")
	ErrRecipeDocument   = errors.New("invalid recipe document")
)

// Lists every structural problem found in a recipe.
//
// A ValidationError matches [ErrRecipeValidation] under [errors.Is].
type ValidationError struct {
	Violations []string // Human readable descriptions, in detection order.
}

// Formats all violations on a single line.
func (e *ValidationError) Error() string {
	n := len(e.Violations)
	noun := "violations"
	if n == 1 {
		noun = "violation"
	}
	return fmt.Sprintf("%s: %d %s: %s", ErrRecipeValidation, n, noun, strings.Join(e.Violations, "; "))
}

// Returns [ErrRecipeValidation].
func (e *ValidationError) Unwrap() error {
	return ErrRecipeValidation
}
