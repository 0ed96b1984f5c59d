package main

import (
	"fmt"

	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/jordanlanch/crmleads/pkg/rbac"
	"github.com/jordanlanch/crmleads/pkg/testdata"
	"github.com/spf13/cobra"
)

func seedDemoCommand(flags *globalFlags) *cobra.Command {
	var (
		leads    int
		sales    int
		managers int
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Insert fake users and unassigned leads for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if leads < 0 || sales < 0 || managers < 0 {
				return fmt.Errorf("counts must not be negative")
			}

			ctx := cmd.Context()
			client, store, log, err := openStore(ctx, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			gen := testdata.NewGenerator(seed)
			users := make([]*models.User, 0, sales+managers)
			for i := 0; i < managers; i++ {
				users = append(users, gen.GenerateUser(rbac.RoleManager))
			}
			for i := 0; i < sales; i++ {
				users = append(users, gen.GenerateUser(rbac.RoleSales))
			}
			if err := testdata.BulkInsertUsers(ctx, store, users); err != nil {
				return err
			}
			if err := testdata.BulkInsertLeads(ctx, store, gen.GenerateLeads(testdata.DefaultLeadConfig(leads))); err != nil {
				return err
			}

			log.Info("demo data seeded", "users", len(users), "leads", leads, "seed", seed)
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users and %d leads\n", len(users), leads)
			return nil
		},
	}
	cmd.Flags().IntVar(&leads, "leads", 50, "Number of leads")
	cmd.Flags().IntVar(&sales, "sales", 5, "Number of sales users")
	cmd.Flags().IntVar(&managers, "managers", 1, "Number of managers")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 picks one)")
	return cmd
}
