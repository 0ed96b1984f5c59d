package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jordanlanch/crmleads/config"
	"github.com/jordanlanch/crmleads/pkg/database"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/jordanlanch/crmleads/pkg/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUser(t *testing.T) {
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	valid := userInput{
		email:     " Ana.Ruiz@Acme.test ",
		firstName: "Ana",
		lastName:  "Ruiz",
		password:  "s3cret-pass",
		role:      "Sales",
		skills:    []string{"spanish"},
		sources:   []string{"referral"},
	}

	u, err := buildUser(valid, now)
	require.NoError(t, err)
	assert.Equal(t, "ana.ruiz@acme.test", u.Email)
	assert.Equal(t, rbac.RoleSales, u.Role)
	assert.Equal(t, models.UserStatusActive, u.Status)
	assert.NotEqual(t, valid.password, u.PasswordHash)
	assert.Equal(t, now, u.CreatedAt)

	tests := []struct {
		name   string
		mutate func(*userInput)
	}{
		{"bad email", func(in *userInput) { in.email = "ana@" }},
		{"unknown role", func(in *userInput) { in.role = "owner" }},
		{"short password", func(in *userInput) { in.password = "short" }},
		{"unknown source", func(in *userInput) { in.sources = []string{"billboard"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := buildUser(in, now)
			assert.Error(t, err)
		})
	}
}

func execute(t *testing.T, cfg *config.Config, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(cfg)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	require.NoError(t, cmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		DBDriver:    "sqlite3",
		DatabaseURL: "file:" + filepath.Join(dir, "crm.db") + "?_loc=UTC",
		LogLevel:    "error",
	}

	out := execute(t, cfg, "create-admin", "--email", "root@crm.test", "--password", "admin-pass-1")
	assert.Contains(t, out, "created admin root@crm.test")

	out = execute(t, cfg, "create-user", "--email", "ana@crm.test", "--password", "sales-pass-1",
		"--first-name", "Ana", "--role", "sales", "--skills", "spanish,saas")
	assert.Contains(t, out, "created sales ana@crm.test")

	out = execute(t, cfg, "seed-demo", "--leads", "12", "--sales", "3", "--managers", "1", "--seed", "7")
	assert.Contains(t, out, "seeded 4 users and 12 leads")

	rules := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte(`rules:
  - name: Referrals round robin
    priority: 20
    conditions:
      lead_sources: [referral]
    strategy:
      type: round_robin
  - name: Big deals
    priority: 50
    conditions:
      value_range:
        min: 10000
    strategy:
      type: least_assigned
      max_per_day: 5
`), 0o600))
	out = execute(t, cfg, "import-rules", "--file", rules)
	assert.Contains(t, out, "rules created: 2, updated: 0")
	out = execute(t, cfg, "import-rules", "--file", rules)
	assert.Contains(t, out, "rules created: 0, updated: 2")

	ctx := context.Background()
	client, err := database.NewClient(ctx, cfg.DBDriver, cfg.DatabaseURL, nil)
	require.NoError(t, err)
	defer client.Close()
	store := database.NewStore(client)

	ana, err := store.GetUserByEmail(ctx, "ana@crm.test")
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"spanish", "saas"}, ana.Skills)

	candidates, err := store.ListCandidateUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, candidates, 5) // ana, three generated sales, one generated manager

	active, err := store.ListActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Big deals", active[0].Name)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	cfg := &config.Config{
		DBDriver:    "sqlite3",
		DatabaseURL: "file:" + filepath.Join(t.TempDir(), "crm.db") + "?_loc=UTC",
		LogLevel:    "error",
	}
	execute(t, cfg, "create-user", "--email", "ana@crm.test", "--password", "sales-pass-1")

	cmd := newRootCommand(cfg)
	cmd.SetArgs([]string{"create-user", "--email", "ana@crm.test", "--password", "sales-pass-1"})
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
