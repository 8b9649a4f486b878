package main

import (
	"errors"
	"time"

	"webauth/pkg/database"
	"webauth/pkg/models"
	"webauth/pkg/password"
	"webauth/pkg/repository"
	"webauth/pkg/services"
	"webauth/pkg/token"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version|redo|reset]",
		Short:     "Run schema migrations",
		Args:      cobra.RangeArgs(0, 2),
		ValidArgs: []string{"up", "down", "status", "version", "redo", "reset"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) > 0 {
				command = args[0]
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			return database.Goose(cmd.Context(), db, command, args[min(1, len(args)):]...)
		},
	}
}

func seedAdminCmd() *cobra.Command {
	var username, plain string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an admin account, or promote an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || plain == "" {
				return errors.New("--username and --password are required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			codec, err := token.NewCodec(cfg.Auth.SecretKey, cfg.Auth.Algorithm)
			if err != nil {
				return err
			}
			issuer := token.NewIssuer(codec, cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL())
			svc := services.NewAuthService(repository.NewUserRepository(db), issuer, nil, nil, nil)
			if err := svc.SeedAdmin(cmd.Context(), username, plain); err != nil {
				return err
			}
			cmd.Printf("%s is an admin\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username")
	cmd.Flags().StringVarP(&plain, "password", "p", "", "password for a new account")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect session tokens",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect <token>",
		Short: "Verify a token with the configured secret and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			codec, err := token.NewCodec(cfg.Auth.SecretKey, cfg.Auth.Algorithm)
			if err != nil {
				return err
			}
			return inspect(cmd, codec, args[0])
		},
	})
	return cmd
}

func inspect(cmd *cobra.Command, codec *token.Codec, raw string) error {
	var lastErr error
	for _, kind := range []models.TokenKind{models.TokenAccess, models.TokenRefresh} {
		t, err := codec.Decode(raw, kind)
		if errors.Is(err, token.ErrTokenExpired) {
			cmd.Printf("%s token, signature valid, expired\n", kind)
			return nil
		}
		if err != nil {
			lastErr = err
			continue
		}
		cmd.Printf("%s token for %s (%s)\n", kind, t.Subject, t.Role)
		cmd.Printf("  issued:  %s\n", t.IssuedAt.Format(time.RFC3339))
		cmd.Printf("  expires: %s (in %s)\n", t.ExpiresAt.Format(time.RFC3339), t.Remaining(codec.Now()).Round(time.Second))
		return nil
	}
	return lastErr
}

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash stored for a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hashed, err := password.Hash(args[0])
			if err != nil {
				return err
			}
			cmd.Println(hashed)
			return nil
		},
	}
}
