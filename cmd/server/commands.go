package main

import (
	"encoding/json"
	"fmt"
	"os"

	"opspulse/internal/api"
	"opspulse/internal/auth"
	"opspulse/internal/config"
	"opspulse/internal/logger"
	"opspulse/internal/models"
	"opspulse/internal/services"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var profile, email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token for a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logger.New(&cfg.Logger)
			ctx := cmd.Context()

			inf, err := connectInfra(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer inf.Close()

			sess, err := auth.Login(ctx, api.New(&cfg.API), inf.store, profile, email, password)
			if err != nil {
				return err
			}
			log.WithField("profile", profile).
				WithField("user_id", sess.UserID()).
				WithField("role", sess.Role()).
				Info("Logged in")
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "default", "session profile name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSignupCmd() *cobra.Command {
	var req models.SignupRequest
	var role string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register an owner or agent account awaiting admin approval",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch models.Role(role) {
			case models.RoleOwner, models.RoleAgent:
				req.Role = models.Role(role)
			default:
				return fmt.Errorf("role must be owner or agent, got %q", role)
			}

			cfg := config.Load()
			log := logger.New(&cfg.Logger)

			user, err := api.New(&cfg.API).Signup(cmd.Context(), req)
			if err != nil {
				return err
			}
			log.WithField("user_id", user.ID).
				WithField("role", user.Role).
				Info("Signed up, waiting for approval")
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password")
	cmd.Flags().StringVar(&role, "role", "agent", "requested role: owner or agent")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Delete the stored session of a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logger.New(&cfg.Logger)

			inf, err := connectInfra(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer inf.Close()

			if err := auth.Logout(cmd.Context(), inf.store, profile); err != nil {
				return err
			}
			log.WithField("profile", profile).Info("Logged out")
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "default", "session profile name")
	return cmd
}

func newRouteCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Resolve a route between two points and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			origin, err := models.ParseCoordinate(from)
			if err != nil {
				return err
			}
			destination, err := models.ParseCoordinate(to)
			if err != nil {
				return err
			}

			cfg := config.Load()
			log := logger.New(&cfg.Logger)

			inf, err := connectInfra(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer inf.Close()

			route := services.NewRouteService(&cfg.Routing, inf.cache, log).Resolve(cmd.Context(), origin, destination)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(route)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "origin as lat,lon")
	cmd.Flags().StringVar(&to, "to", "", "destination as lat,lon")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
