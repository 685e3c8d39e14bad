package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/meeting-engine/config"
	"github.com/warp/meeting-engine/identity"
	"github.com/warp/meeting-engine/meeting"
	"github.com/warp/meeting-engine/store/sqlite"
)

var (
	tokenEmployee string
	tokenTTL      time.Duration
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an employee",
		Long: `Issue a signed bearer token for an active employee.

The token identifies who made an assignment. It is signed with JWT_SECRET
from the environment or the --env file.`,
		RunE: runToken,
	}
	cmd.Flags().StringVar(&tokenEmployee, "employee", "", "Employee id")
	cmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default from config)")
	_ = cmd.MarkFlagRequired("employee")
	return cmd
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	secrets := config.LoadSecrets(envFile)
	if secrets.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	store, err := sqlite.New(cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	emps, err := store.QueryEmployees(cmd.Context(), meeting.EmployeeFilter{ActiveOnly: true, IDs: []string{tokenEmployee}})
	if err != nil {
		return err
	}
	if len(emps) == 0 {
		return fmt.Errorf("%w: %s", meeting.ErrEmployeeNotFound, tokenEmployee)
	}

	ttl := cfg.TokenTTL
	if tokenTTL > 0 {
		ttl = tokenTTL
	}
	resolver, err := identity.NewJWTResolver(secrets.JWTSecret, ttl, nil)
	if err != nil {
		return err
	}
	token, err := resolver.Issue(emps[0].Ref())
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
