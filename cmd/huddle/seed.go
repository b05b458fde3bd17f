package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/alecgard/huddle/internal/config"
	"github.com/alecgard/huddle/internal/group"
	"github.com/alecgard/huddle/internal/task"
	"github.com/alecgard/huddle/internal/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo users, a group, and tasks",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

var demoUsers = []user.CreateUserInput{
	{Username: "alice-demo", Name: "Alice", Email: "alice@huddle.local", Password: "demo-password"},
	{Username: "bobby-demo", Name: "Bob", Email: "bob@huddle.local", Password: "demo-password"},
	{Username: "carol-demo", Name: "Carol", Email: "carol@huddle.local", Password: "demo-password"},
}

var demoTasks = []string{
	"Book the venue",
	"Plan the menu",
	"Send out invitations",
	"Buy decorations",
	"Organize the playlist",
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	userStore := user.NewStore(pool, cfg.Auth.SessionTTL)
	groupStore := group.NewStore(pool, cfg.Invites.LinkBase, cfg.Invites.TTL)
	taskStore := task.NewStore(pool)

	// Check if seed has already run.
	if _, err := userStore.GetByEmail(ctx, demoUsers[0].Email); err == nil {
		slog.Info("demo data already exists, skipping seed")
		return nil
	} else if !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("checking existing users: %w", err)
	}

	// Create users.
	var created []*user.User
	for _, input := range demoUsers {
		u, err := userStore.Create(ctx, input)
		if err != nil {
			return fmt.Errorf("creating user %q: %w", input.Username, err)
		}
		slog.Info("created user", "username", u.Username, "id", u.ID)
		created = append(created, u)
	}

	// Create a group led by the first user and add the others.
	g, err := groupStore.Create(ctx, "Launch Party", created[0].ID)
	if err != nil {
		return fmt.Errorf("creating demo group: %w", err)
	}
	for _, u := range created[1:] {
		if err := groupStore.AddMember(ctx, g.ID, u.ID); err != nil {
			return fmt.Errorf("adding %q to group: %w", u.Username, err)
		}
	}
	slog.Info("created group", "name", g.Name, "id", g.ID, "invite_code", g.InviteCode)

	// Create tasks.
	for _, name := range demoTasks {
		t, err := taskStore.Create(ctx, task.CreateTaskInput{
			GroupID:   g.ID,
			CreatedBy: created[0].ID,
			Name:      name,
		})
		if err != nil {
			return fmt.Errorf("creating task %q: %w", name, err)
		}
		slog.Info("created task", "name", t.Name, "id", t.ID)
	}

	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("Users:       %d registered (password: demo-password)\n", len(created))
	fmt.Printf("Group:       %s (%s)\n", g.Name, g.ID)
	fmt.Printf("Invite code: %s\n", g.InviteCode)
	fmt.Printf("Invite link: %s\n", g.InviteLink)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -X POST http://localhost:8080/api/v1/auth/login -d '{\"email\":\"%s\",\"password\":\"demo-password\"}'\n", created[0].Email)
	fmt.Printf("  curl -X POST http://localhost:8080/api/v1/groups/%s/tasks/shuffle -H 'Authorization: Bearer <token>'\n", g.ID)

	return nil
}
