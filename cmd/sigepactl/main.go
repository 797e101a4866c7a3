// Command sigepactl is the operator CLI: it issues tokens, hashes passwords
// and bootstraps users directly against the database.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sigepa.cl/internal/auth"
	"sigepa.cl/internal/config"
	"sigepa.cl/internal/estate"
	"sigepa.cl/internal/store/pg"
)

func main() {
	root := &cobra.Command{
		Use:           "sigepactl",
		Short:         "Operator tooling for the SIGEPA API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(tokenCmd(), passwordCmd(), userCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Session token operations"}

	var (
		userID      int64
		email       string
		role        string
		communityID int64
		ttl         time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a session token with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTTL
			}
			tokens, err := auth.NewTokens(cfg.Auth.Secret,
				auth.WithIssuer(cfg.Auth.Issuer),
				auth.WithAccessTTL(ttl),
			)
			if err != nil {
				return err
			}
			token, exp, err := tokens.Issue(auth.Identity{
				UserID:      userID,
				Email:       email,
				Role:        r,
				CommunityID: communityID,
			})
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"token": token, "expiresAt": exp})
		},
	}
	issue.Flags().Int64Var(&userID, "user", 0, "user id (subject)")
	issue.Flags().StringVar(&email, "email", "", "user email")
	issue.Flags().StringVar(&role, "role", string(auth.RoleCopropietario), "administrador|copropietario")
	issue.Flags().Int64Var(&communityID, "community", 0, "community id")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: configured access ttl)")
	_ = issue.MarkFlagRequired("user")

	cmd.AddCommand(issue)
	return cmd
}

func passwordCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "password", Short: "Password utilities"}
	hash := &cobra.Command{
		Use:   "hash [password]",
		Short: "Print the bcrypt hash of a password (reads stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plain string
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				plain = strings.TrimRight(line, "\r\n")
			}
			if plain == "" {
				return errors.New("password is empty")
			}
			h, err := auth.HashPassword(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.AddCommand(hash)
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "User administration"}

	var (
		communityID int64
		in          estate.NewUser
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user in a community",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Database.DSN == "" {
				return errors.New("SIGEPA_PG_DSN is required")
			}
			store, err := pg.Open(cfg.Database.DSN, pg.PoolOptions{MaxOpenConns: 2})
			if err != nil {
				return err
			}
			defer store.Close()

			svc, err := estate.NewService(store)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			u, err := svc.CreateUser(ctx, communityID, in)
			if err != nil {
				return err
			}
			return printJSON(u)
		},
	}
	create.Flags().Int64Var(&communityID, "community", 0, "community id")
	create.Flags().StringVar(&in.Email, "email", "", "login email")
	create.Flags().StringVar(&in.Name, "name", "", "display name")
	create.Flags().StringVar(&in.Phone, "phone", "", "contact phone")
	create.Flags().StringVar(&in.Role, "role", string(auth.RoleCopropietario), "administrador|copropietario")
	create.Flags().StringVar(&in.Password, "password", "", "initial password")
	for _, f := range []string{"community", "email", "name", "password"} {
		_ = create.MarkFlagRequired(f)
	}

	cmd.AddCommand(create)
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
