package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/fidelity/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool   `json:"valid"`
	Path        string `json:"path"`
	Scenarios   int    `json:"scenarios"`
	Comparisons int    `json:"comparisons"`
	Hash        string `json:"hash"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a fidelity configuration",
		Long: `Validate a fidelity configuration without capturing anything.

Checks the document against the configuration schema, normalizes scenario
and golden names, and rejects duplicates and names that are not safe as
directory names.

Exit codes:
  0 - Configuration is valid
  1 - Configuration is invalid
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		if outErr := formatter.Error(ErrCodeNotFound, fmt.Sprintf("config not found: %s", path), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "config not found", err)
	}
	if err != nil {
		var ce *config.ConfigError
		if !errors.As(err, &ce) {
			return WrapExitError(ExitCommandError, "validate", err)
		}
		if outErr := formatter.Error(config.CodeInvalid, ce.Error(), configErrorDetails(ce)); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "configuration is invalid", err)
	}

	hash, err := cfg.Hash()
	if err != nil {
		return WrapExitError(ExitCommandError, "hash configuration", err)
	}
	result := ValidationResult{
		Valid:     true,
		Path:      path,
		Scenarios: len(cfg),
		Hash:      hash,
	}
	for _, s := range cfg {
		formatter.VerboseLog("scenario %s: %d golden(s) at %s", s.Slug, len(s.Goldens), s.Dimensions)
		result.Comparisons += len(s.Goldens)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d scenario(s), %d comparison(s)\n",
		formatter.Mark(true), path, result.Scenarios, result.Comparisons)
	return nil
}

func configErrorDetails(ce *config.ConfigError) map[string]string {
	details := map[string]string{}
	if ce.Path != "" {
		details["path"] = ce.Path
	}
	if ce.Field != "" {
		details["field"] = ce.Field
	}
	if len(details) == 0 {
		return nil
	}
	return details
}
