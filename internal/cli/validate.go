package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Surveys []string                   `json:"surveys,omitempty"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`

	// Fingerprints maps each valid survey to its definition hash.
	Fingerprints map[string]string `json:"fingerprints,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <survey-dir>",
		Short: "Validate CUE questionnaire definitions",
		Long: `Compile every questionnaire under the "survey" struct of the CUE
package in <survey-dir> and check it against the structural rules: step
and field names, field kinds and options, and the interest and
market_obstacle fields the contact matcher depends on.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return outputValidateError(formatter, ErrCodeNotFound,
			fmt.Sprintf("survey directory not found: %s", dir))
	}
	cueFiles, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil || len(cueFiles) == 0 {
		return outputValidateError(formatter, ErrCodeNoFiles,
			fmt.Sprintf("no CUE files found in %s", dir))
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", len(cueFiles), dir)

	defs, err := compiler.LoadDir(dir)
	if err != nil {
		var cErr *compiler.CompileError
		if errors.As(err, &cErr) {
			return outputValidationErrors(formatter, nil, []compiler.ValidationError{{
				Field:   cErr.Field,
				Message: err.Error(),
				Code:    ErrCodeCompile,
				Line:    lineOf(cErr),
			}})
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error())
	}

	var names []string
	var validationErrors []compiler.ValidationError
	for _, def := range defs {
		formatter.VerboseLog("Validating survey: %s", def.Name)
		names = append(names, def.Name)
		for _, vErr := range compiler.Validate(def) {
			vErr.Field = "survey." + def.Name + "." + vErr.Field
			validationErrors = append(validationErrors, vErr)
		}
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, names, validationErrors)
	}

	fingerprints := make(map[string]string, len(defs))
	for _, def := range defs {
		fp, err := compiler.Fingerprint(def)
		if err != nil {
			return outputValidateError(formatter, ErrCodeGeneric, err.Error())
		}
		fingerprints[def.Name] = fp
	}
	return outputValidateSuccess(formatter, names, fingerprints)
}

func lineOf(cErr *compiler.CompileError) int {
	if cErr.Pos.IsValid() {
		return cErr.Pos.Line()
	}
	return 0
}

func outputValidateSuccess(formatter *OutputFormatter, names []string, fingerprints map[string]string) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Surveys: names, Fingerprints: fingerprints})
	}

	for _, name := range names {
		fmt.Fprintf(formatter.Writer, "✓ %s  %s\n", name, fingerprints[name][:12])
	}
	fmt.Fprintln(formatter.Writer, "✓ All surveys valid")
	return nil
}

// outputValidateError reports a problem with the command input rather than
// the definitions.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

func outputValidationErrors(formatter *OutputFormatter, names []string, errs []compiler.ValidationError) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		result := ValidationResult{Valid: false, Surveys: names, Errors: errs}
		if err := formatter.Failure(errs[0].Code, errs[0].Message, result); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return exitErr
}
