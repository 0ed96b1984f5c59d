package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"github.com/jordanlanch/crmleads/pkg/auth"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/jordanlanch/crmleads/pkg/rbac"
	"github.com/spf13/cobra"
)

type userInput struct {
	email     string
	firstName string
	lastName  string
	password  string
	role      string
	region    string
	skills    []string
	sources   []string
}

// buildUser validates input and returns an active user with a hashed password.
func buildUser(in userInput, now time.Time) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.email))
	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, fmt.Errorf("invalid email %q: %w", in.email, err)
	}
	role, err := rbac.ParseRole(in.role)
	if err != nil {
		return nil, err
	}
	if len(in.password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	for _, s := range in.sources {
		switch models.LeadSource(s) {
		case models.SourceWebsite, models.SourceSocialMedia, models.SourceReferral, models.SourceColdCall,
			models.SourceEmail, models.SourceEvent, models.SourceOther:
		default:
			return nil, fmt.Errorf("unknown lead source %q", s)
		}
	}

	hash, err := auth.HashPassword(in.password)
	if err != nil {
		return nil, fmt.Errorf("failed hashing password: %w", err)
	}

	return &models.User{
		ID:               uuid.NewString(),
		Email:            email,
		FirstName:        strings.TrimSpace(in.firstName),
		LastName:         strings.TrimSpace(in.lastName),
		PasswordHash:     hash,
		Role:             role,
		Status:           models.UserStatusActive,
		Skills:           in.skills,
		Region:           in.region,
		PreferredSources: in.sources,
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}, nil
}

func createUserCommand(flags *globalFlags) *cobra.Command {
	in := userInput{}

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an active CRM account",
		Example: `  crmctl create-user --email ana@acme.test --first-name Ana --last-name Ruiz \
    --role sales --password s3cret-pass --skills spanish,saas --region south`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateUser(cmd, flags, in)
		},
	}
	cmd.Flags().StringVar(&in.email, "email", "", "Account email")
	cmd.Flags().StringVar(&in.firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&in.lastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&in.password, "password", "", "Initial password (min 8 characters)")
	cmd.Flags().StringVar(&in.role, "role", string(rbac.RoleSales), "Role: admin, manager, sales or viewer")
	cmd.Flags().StringVar(&in.region, "region", "", "Sales region")
	cmd.Flags().StringSliceVar(&in.skills, "skills", nil, "Comma-separated skills")
	cmd.Flags().StringSliceVar(&in.sources, "preferred-sources", nil, "Comma-separated preferred lead sources")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func createAdminCommand(flags *globalFlags) *cobra.Command {
	in := userInput{firstName: "Admin", lastName: "User", role: string(rbac.RoleAdmin)}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the first administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateUser(cmd, flags, in)
		},
	}
	cmd.Flags().StringVar(&in.email, "email", "", "Admin email")
	cmd.Flags().StringVar(&in.password, "password", "", "Initial password (min 8 characters)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runCreateUser(cmd *cobra.Command, flags *globalFlags, in userInput) error {
	u, err := buildUser(in, time.Now())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client, store, log, err := openStore(ctx, flags)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := store.CreateUser(ctx, u); err != nil {
		return fmt.Errorf("failed creating user: %w", err)
	}
	log.Info("user created", "user_id", u.ID, "email", u.Email, "role", string(u.Role))
	fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", u.Role, u.Email, u.ID)
	return nil
}
