package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/docproc/gini-go/internal/tokenfile"
	"github.com/docproc/gini-go/pkg/giniapi"
)

// Login flags, bound in newLoginCmd().
var (
	flagAuthCode string
	flagUser     string
	flagPassword string
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and save a session token",
		Long: `Authenticate against the Gini identity provider and save the session
token for subsequent commands.

The grant is picked from the supplied credentials: --auth-code uses the
authorization-code grant, --user with --password the resource-owner
password grant. With neither, the client credentials authorize requests
directly (trusted gateway).`,
		RunE: runLogin,
	}

	cmd.Flags().StringVar(&flagAuthCode, "auth-code", "", "authorization code from the OAuth redirect")
	cmd.Flags().StringVar(&flagUser, "user", "", "resource owner username")
	cmd.Flags().StringVar(&flagPassword, "password", "", "resource owner password")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session token and remove it from disk",
		RunE:  runLogout,
	}
}

func runLogin(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	client, err := newClient(logger)
	if err != nil {
		return err
	}

	err = client.Login(ctx, giniapi.Credentials{
		AuthCode: flagAuthCode,
		Username: flagUser,
		Password: flagPassword,
	})
	if err != nil {
		return err
	}

	if err := tokenfile.Save(resolvedCfg.TokenPath, client.Token()); err != nil {
		return err
	}

	logger.Info("login successful")
	statusf("Login successful.\n")

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	client, err := newSession(logger)
	if err != nil {
		return err
	}

	if err := client.Logout(ctx); err != nil {
		return err
	}

	if err := tokenfile.Remove(resolvedCfg.TokenPath); err != nil {
		return err
	}

	logger.Info("logout successful")
	statusf("Logged out.\n")

	return nil
}
