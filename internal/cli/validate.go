package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/bumpflow/internal/flow"
)

// ValidateResult is the data payload of validate.
type ValidateResult struct {
	File    string          `json:"file"`
	Valid   bool            `json:"valid"`
	Presets int             `json:"presets"`
	Rules   int             `json:"branches"`
	Flows   int             `json:"flows"`
	Errors  []ValidateIssue `json:"errors,omitempty"`
}

// ValidateIssue is one problem in a policy document.
type ValidateIssue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <policy-file>",
		Short: "Validate a versioning policy document",
		Long: `Validate a versioning policy document (.yaml, .yml, .toml, .cue or .json).

Checks unknown fields, preset strategies, branch patterns and flow
references, reporting every problem found.

Exit codes:
  0 - Valid
  1 - Invalid document
  2 - Command error (file not found, unsupported extension)

Examples:
  bumpflow validate .github/versioning.yaml
  bumpflow validate policy.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(rootOpts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)

	if _, err := os.Stat(path); err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("policy file not found: %s", path), err)
	}
	if _, err := flow.FormatOf(path); err != nil {
		return f.Fail(ExitCommandError, ErrCodePolicy, "unsupported policy document", err)
	}

	result := ValidateResult{File: path}
	cfg, err := flow.LoadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, ValidateIssue{Message: err.Error()})
	} else {
		result.Presets, result.Rules, result.Flows = len(cfg.Presets), len(cfg.Branches), len(cfg.Flows)
		for _, e := range flow.Validate(cfg) {
			var ve *flow.ValidationError
			if errors.As(e, &ve) {
				result.Errors = append(result.Errors, ValidateIssue{Field: ve.Field, Message: ve.Message})
				continue
			}
			result.Errors = append(result.Errors, ValidateIssue{Message: e.Error()})
		}
	}
	result.Valid = len(result.Errors) == 0

	if f.Format == "json" {
		if result.Valid {
			return f.Success(result)
		}
		if err := f.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodePolicy, Message: fmt.Sprintf("%d validation errors", len(result.Errors))},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "policy document is invalid")
	}

	if result.Valid {
		fmt.Fprintf(f.Writer, "✓ %s is valid (%d presets, %d branch rules, %d flows)\n",
			path, result.Presets, result.Rules, result.Flows)
		return nil
	}
	fmt.Fprintf(f.Writer, "✗ %s is invalid\n", path)
	for _, issue := range result.Errors {
		if issue.Field != "" {
			fmt.Fprintf(f.Writer, "  %s: %s\n", issue.Field, issue.Message)
			continue
		}
		fmt.Fprintf(f.Writer, "  %s\n", issue.Message)
	}
	return NewExitError(ExitFailure, "policy document is invalid")
}
