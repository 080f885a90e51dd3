package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/foresight/internal/adaptive"
	"github.com/Iron-Ham/foresight/internal/config"
	"github.com/Iron-Ham/foresight/internal/policy"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Inspect and validate adaptation policies",
	Long: `Inspect and validate adaptation policies.

Policies are declarative rules: when every condition holds and the cooldown
has elapsed, their actions are applied. The controller always carries the
built-in policies; a policy file set with policies.file adds to or replaces
them by name.`,
}

var policiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the policies the controller would run",
	RunE:  runPoliciesList,
}

var policiesValidateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate policy files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPoliciesValidate,
}

var policiesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the built-in policies as a policy file",
	Long: `Print the built-in policies in policy file format.

The output is a starting point for a custom policy file:
  foresight policies export > ~/.config/foresight/policies.yaml`,
	RunE: runPoliciesExport,
}

var policiesFile string

func init() {
	policiesListCmd.Flags().StringVarP(&policiesFile, "file", "f", "", "Policy file to include (default: policies.file)")

	policiesCmd.AddCommand(policiesListCmd)
	policiesCmd.AddCommand(policiesValidateCmd)
	policiesCmd.AddCommand(policiesExportCmd)
	rootCmd.AddCommand(policiesCmd)
}

func runPoliciesList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	engine := policy.NewEngine()
	source := make(map[string]string)
	for _, p := range adaptive.DefaultPolicies(cfg.AdaptiveConfig()) {
		if err := engine.UpdatePolicy(p); err != nil {
			return err
		}
		source[p.Name] = "built-in"
	}

	file := policiesFile
	if file == "" {
		file = cfg.Policies.File
	}
	if file != "" {
		loaded, err := policy.LoadFile(file)
		if err != nil {
			return err
		}
		for _, p := range loaded {
			if err := engine.UpdatePolicy(p); err != nil {
				return err
			}
			source[p.Name] = file
		}
	}

	p := newPrinter(cmd.OutOrStdout())
	p.title(fmt.Sprintf("%d policies", engine.Len()))

	policies := engine.Policies()
	rows := make([][]string, 0, len(policies))
	for _, pol := range policies {
		rows = append(rows, []string{
			pol.Name,
			describeConditions(pol.Conditions),
			describeActions(pol),
			pol.Cooldown.String(),
			source[pol.Name],
		})
	}
	p.table([]string{"NAME", "CONDITIONS", "ACTIONS", "COOLDOWN", "SOURCE"}, rows, nil)
	return nil
}

func describeConditions(conditions []policy.Condition) string {
	if len(conditions) == 0 {
		return "always"
	}
	parts := make([]string, 0, len(conditions))
	for _, c := range conditions {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " && ")
}

func describeActions(p policy.Policy) string {
	parts := make([]string, 0, len(p.Actions))
	for _, a := range p.Actions {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}

func runPoliciesValidate(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd.OutOrStdout())

	failed := 0
	for _, file := range args {
		policies, err := policy.LoadFile(file)
		if err != nil {
			failed++
			p.println(p.render(errorStyle, "✗ "+file) + ": " + err.Error())
			continue
		}
		p.println(p.render(okStyle, "✓ "+file) + fmt.Sprintf(": %d valid policies", len(policies)))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d policy files are invalid", failed, len(args))
	}
	return nil
}

func runPoliciesExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := policy.Marshal(adaptive.DefaultPolicies(cfg.AdaptiveConfig()))
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
