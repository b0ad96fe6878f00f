package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"isrr-engine/internal/loader"
	"isrr-engine/internal/rules"
)

// ValidateRulesCommand creates the validate-rules command.
func ValidateRulesCommand() *cobra.Command {
	var (
		interimPath string
		finalPath   string
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "validate-rules",
		Short: "Validate interim and final rule tables before a run",
		Long: `Validate the interim and final rule tables without processing any
entities.

Loading alone already rejects malformed rows (unknown tiers, unknown
nature-of-data labels, bad modifiers, duplicate keys). On top of that
this command reports coverage gaps: tier/pattern combinations with no
interim rule, and a final table without a universal fallback row.

Examples:
  # Validate both tables
  ./isrr-engine validate-rules --interim data/interim_rules.csv --final data/final_rules.csv

  # Treat coverage gaps as errors
  ./isrr-engine validate-rules --interim data/interim_rules.csv --final data/final_rules.csv --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateRules(cmd, interimPath, finalPath, strict)
		},
	}

	cmd.Flags().StringVar(&interimPath, "interim", "", "Interim rule table file (required)")
	cmd.Flags().StringVar(&finalPath, "final", "", "Final rule table file (required)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on coverage gaps, not just malformed tables")
	_ = cmd.MarkFlagRequired("interim")
	_ = cmd.MarkFlagRequired("final")

	return cmd
}

// classifiablePatterns is the set of patterns entities can actually
// land in; interim coverage is judged against these.
var classifiablePatterns = []rules.Pattern{
	rules.PatternOneNonTransactional,
	rules.PatternOneTxOrTwoNonTx,
	rules.PatternMixedOrTwoTx,
	rules.PatternThreePlusTx,
	rules.PatternOther,
}

func runValidateRules(cmd *cobra.Command, interimPath, finalPath string, strict bool) error {
	out := cmd.OutOrStdout()

	interimTable, err := loader.ReadTable(interimPath)
	if err != nil {
		return fmt.Errorf("reading interim table: %w", err)
	}
	interim, err := loader.LoadInterimTable(interimTable)
	if err != nil {
		return fmt.Errorf("interim table invalid: %w", err)
	}
	fmt.Fprintf(out, "Interim table: %d rules loaded\n", interim.Len())

	finalRaw, err := loader.ReadTable(finalPath)
	if err != nil {
		return fmt.Errorf("reading final table: %w", err)
	}
	final, err := loader.LoadFinalTable(finalRaw)
	if err != nil {
		return fmt.Errorf("final table invalid: %w", err)
	}
	fmt.Fprintf(out, "Final table: %d rules loaded\n", final.Len())

	gaps := 0
	for _, tier := range []rules.Tier{rules.TierD2, rules.TierD3, rules.TierD4} {
		for _, pattern := range classifiablePatterns {
			if _, err := interim.Lookup(tier, pattern); err != nil {
				fmt.Fprintf(out, "  gap: no interim rule for tier %s, pattern %s\n", tier, pattern)
				gaps++
			}
		}
	}
	if gaps == 0 {
		fmt.Fprintf(out, "Interim coverage: complete\n")
	} else {
		fmt.Fprintf(out, "Interim coverage: %d gaps (entities landing there will fail)\n", gaps)
	}

	if final.HasUniversalRule() {
		fmt.Fprintf(out, "Final fallback: universal rule present\n")
	} else {
		fmt.Fprintf(out, "Final fallback: MISSING universal rule; unmatched entities will fail\n")
	}

	if strict && (gaps > 0 || !final.HasUniversalRule()) {
		return fmt.Errorf("rule tables have coverage gaps")
	}
	return nil
}

// RunValidateRulesCommand executes the cobra command with the given
// args, matching the plain-flag command entry points.
func RunValidateRulesCommand(args []string) error {
	cmd := ValidateRulesCommand()
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	return cmd.Execute()
}
