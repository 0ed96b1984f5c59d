package main

import (
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/jordanlanch/crmleads/pkg/leadassignment"
	"github.com/spf13/cobra"
)

func importRulesCommand(flags *globalFlags) *cobra.Command {
	var (
		file    string
		actorID string
	)

	cmd := &cobra.Command{
		Use:   "import-rules",
		Short: "Create or update assignment rules from a YAML file",
		Long: `Rules are matched by name: new names are created, existing ones are
replaced field by field. Every rule is validated like an API write.`,
		Example: "  crmctl import-rules --file rules.yaml --actor 2b7c4e1a-...",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			set, err := leadassignment.LoadRuleSet(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, store, log, err := openStore(ctx, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			svc := leadassignment.NewRuleService(store, clockwork.NewRealClock(), log)
			res, err := svc.ImportRules(ctx, set.Rules, actorID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rules created: %d, updated: %d\n", res.Created, res.Updated)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML rule set")
	cmd.Flags().StringVar(&actorID, "actor", "", "User ID recorded as the rules' creator")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
