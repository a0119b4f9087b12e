package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/spf13/cobra"
)

// withServices 为一次性命令装配服务（无缓存、无SSE、无对象存储）
func withServices(fn func(ctx context.Context, svc *service.Services) error) error {
	cfg, zapLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	db, err := initDatabase(cfg.Database)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	svc := service.NewServices(service.Deps{
		DB:     db,
		Repos:  repository.NewRepositories(db),
		Config: cfg,
		Logger: zapLogger,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, svc)
}

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}

	var (
		teamID, userID, name string
		canRead, canWrite    bool
		canAdmin             bool
		ttl                  time.Duration
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a new API key for a team member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(ctx context.Context, svc *service.Services) error {
				req := service.CreateAPIKeyRequest{
					Name:     name,
					CanRead:  &canRead,
					CanWrite: canWrite,
					CanAdmin: canAdmin,
				}
				if ttl > 0 {
					expires := time.Now().Add(ttl)
					req.ExpiresAt = &expires
				}
				key, err := svc.APIKey.Create(ctx, teamID, userID, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "id:  %s\nkey: %s\n", key.ID, key.Key)
				fmt.Fprintln(cmd.ErrOrStderr(), "store the key now, it cannot be shown again")
				return nil
			})
		},
	}
	create.Flags().StringVar(&teamID, "team", "", "team id")
	create.Flags().StringVar(&userID, "user", "", "owning user id (must be a team member)")
	create.Flags().StringVar(&name, "name", "", "key name")
	create.Flags().BoolVar(&canRead, "read", true, "grant read permission")
	create.Flags().BoolVar(&canWrite, "write", false, "grant write permission")
	create.Flags().BoolVar(&canAdmin, "admin", false, "grant admin permission")
	create.Flags().DurationVar(&ttl, "ttl", 0, "expire the key after this duration")
	_ = create.MarkFlagRequired("team")
	_ = create.MarkFlagRequired("user")
	_ = create.MarkFlagRequired("name")

	var revokeTeam string
	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(ctx context.Context, svc *service.Services) error {
				return svc.APIKey.Revoke(ctx, revokeTeam, args[0])
			})
		},
	}
	revoke.Flags().StringVar(&revokeTeam, "team", "", "team id")
	_ = revoke.MarkFlagRequired("team")

	cmd.AddCommand(create, revoke)
	return cmd
}

func newMemberCmd() *cobra.Command {
	var (
		teamID, userID string
		name, email    string
		role           string
		allDepartments bool
	)
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Add or update a team member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(ctx context.Context, svc *service.Services) error {
				member, err := svc.Access.AddMember(ctx, teamID, service.AddMemberRequest{
					UserID:         userID,
					Name:           name,
					Email:          email,
					Role:           role,
					AllDepartments: allDepartments,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is %s of %s\n", member.UserID, member.Role, member.TeamID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&teamID, "team", "", "team id")
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&role, "role", "member", "admin or member")
	cmd.Flags().BoolVar(&allDepartments, "all-departments", false, "grant access to every department")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
