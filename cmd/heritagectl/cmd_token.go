package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "heritage/internal/jwt_token"
	"heritage/internal/platform/config"
	"heritage/pkg/requestcontext"
)

type tokenOptions struct {
	userID string
	email  string
	slug   string
	admin  bool
	ttl    time.Duration
}

// newTokenCmd mints a bearer token signed with the JWT_* settings the server
// reads, so local requests can act as a member or an admin.
func newTokenCmd() *cobra.Command {
	var opts tokenOptions
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed access token for local testing",
		Example: `  heritagectl token --user u-1 --slug anil-sharma
  heritagectl token --user ops --admin --ttl 15m`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to mint tokens with production settings")
			}
			ttl := opts.ttl
			if ttl <= 0 {
				ttl = cfg.JWT.TTL
			}
			sub := jwttoken.Subject{UserID: opts.userID, Email: opts.email, MemberSlug: opts.slug}
			if opts.admin {
				sub.Roles = []string{requestcontext.RoleAdmin}
			}

			svc := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
			token, err := svc.GenerateAccessToken(sub, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.userID, "user", "", "subject user id (required)")
	cmd.Flags().StringVar(&opts.email, "email", "", "account email, used to find the caller's profile")
	cmd.Flags().StringVar(&opts.slug, "slug", "", "member profile slug owned by the caller")
	cmd.Flags().BoolVar(&opts.admin, "admin", false, "grant the admin role")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "token lifetime (defaults to JWT_TTL)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
