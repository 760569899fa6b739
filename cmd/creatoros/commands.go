package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/creatoros/go-auth-client/authapi"
	"github.com/creatoros/go-auth-client/idp"
	"github.com/creatoros/go-auth-client/internal/browser"
	"github.com/creatoros/go-auth-client/internal/config"
	"github.com/creatoros/go-auth-client/server"
	"github.com/creatoros/go-auth-client/session"
	"github.com/creatoros/go-auth-client/storage/filestore"
	"github.com/creatoros/go-auth-client/storage/memstore"
	"github.com/creatoros/go-auth-client/users"
)

// loginTimeout bounds the wait for the user to finish the browser round trip.
const loginTimeout = 5 * time.Minute

func buildManager(c config.Config, logger zerolog.Logger) (*session.Manager, error) {
	idpConfig := idp.Config{
		BaseURL:      c.GetKeycloakBaseURL(),
		TokenBaseURL: c.GetKeycloakTokenBaseURL(),
		Realm:        c.GetKeycloakRealm(),
		ClientID:     c.GetKeycloakClientID(),
		RedirectURI:  c.GetRedirectURI(),
	}
	var idpClient *idp.KeycloakClient
	var err error
	if c.GetKeycloakDiscovery() {
		idpClient, err = idp.NewKeycloakClientWithDiscovery(context.Background(), idpConfig, idp.WithLogger(logger))
	} else {
		idpClient, err = idp.NewKeycloakClient(idpConfig, idp.WithLogger(logger))
	}
	if err != nil {
		return nil, errors.Wrap(err, "[buildManager] keycloak client")
	}

	backend, err := authapi.New(c.GetAuthServiceURL(), authapi.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[buildManager] auth service client")
	}

	durable, err := filestore.New(c.GetDataFolder())
	if err != nil {
		return nil, errors.Wrap(err, "[buildManager] file store")
	}

	return session.NewManager(session.Deps{
		IdentityProvider: idpClient,
		AuthService:      backend,
		Durable:          durable,
		Scoped:           memstore.New(),
		Navigator:        browser.Opener{},
	}, c.GetAppRootURL(), c.GetAppRootURL(), session.WithLogger(logger))
}

// runRedirectFlow starts the loopback callback listener, opens the browser on
// the authorization page and waits for the provider to redirect back.
func runRedirectFlow(c config.Config, logger zerolog.Logger, manager *session.Manager, mode session.Mode, emailHint string) error {
	callback, err := server.NewCallbackServer(c.GetRedirectURI(), manager, server.WithCallbackLogger(logger))
	if err != nil {
		return err
	}
	if err := callback.Start(); err != nil {
		return err
	}
	if err := manager.BeginAuthRedirect(mode, emailHint); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
	defer cancel()
	if err := callback.Wait(ctx); err != nil {
		return err
	}

	user, ok := manager.CurrentUser()
	if !ok {
		return errors.New("signed in but no user record was loaded")
	}
	fmt.Printf("Signed in as %s (%s)\n", user.Username, user.Email)
	if !user.IsProfileComplete {
		fmt.Printf("Profile %d%% complete. Run 'creatoros profile set' to finish it.\n", manager.ProfileCompletion())
	}
	return nil
}

func loginCmd(c config.Config, logger zerolog.Logger) *cobra.Command {
	var email, username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser, or with --username/--password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			displayAppname(c.GetAppName())
			manager, err := buildManager(c, logger)
			if err != nil {
				return err
			}
			if username != "" || password != "" {
				if err := manager.LoginWithPassword(cmd.Context(), username, password); err != nil {
					return err
				}
				user, _ := manager.CurrentUser()
				fmt.Printf("Signed in as %s\n", user.Username)
				return nil
			}
			return runRedirectFlow(c, logger, manager, session.ModeLogin, email)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "pre-fill the login form with this email")
	cmd.Flags().StringVar(&username, "username", "", "sign in with username and password instead of the browser")
	cmd.Flags().StringVar(&password, "password", "", "password for --username")
	return cmd
}

func registerCmd(c config.Config, logger zerolog.Logger) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account through the browser",
		RunE: func(_ *cobra.Command, _ []string) error {
			displayAppname(c.GetAppName())
			manager, err := buildManager(c, logger)
			if err != nil {
				return err
			}
			return runRedirectFlow(c, logger, manager, session.ModeRegister, email)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "pre-fill the registration form with this email")
	return cmd
}

func logoutCmd(c config.Config, logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session locally and at the identity provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := buildManager(c, logger)
			if err != nil {
				return err
			}
			if err := manager.RestoreSession(cmd.Context()); err != nil {
				return err
			}
			if err := manager.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		},
	}
}

func whoamiCmd(c config.Config, logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := buildManager(c, logger)
			if err != nil {
				return err
			}
			if err := manager.RestoreSession(cmd.Context()); err != nil {
				return err
			}
			user, ok := manager.CurrentUser()
			if !ok {
				return errors.New("not signed in")
			}
			fmt.Printf("ID:        %s\n", user.ID)
			fmt.Printf("Username:  %s\n", user.Username)
			fmt.Printf("Email:     %s (verified: %t)\n", user.Email, user.IsEmailVerified)
			fmt.Printf("Roles:     %v\n", user.Roles)
			fmt.Printf("Profile:   %d%% complete\n", manager.ProfileCompletion())
			return nil
		},
	}
}

func tokenCmd(c config.Config, logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it if needed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := buildManager(c, logger)
			if err != nil {
				return err
			}
			if err := manager.RestoreSession(cmd.Context()); err != nil {
				return err
			}
			accessToken, err := manager.GetValidAccessToken(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(accessToken)
			return nil
		},
	}
}

func profileCmd(c config.Config, logger zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the creator profile",
	}
	cmd.AddCommand(profileSetCmd(c, logger))
	return cmd
}

func profileSetCmd(c config.Config, logger zerolog.Logger) *cobra.Command {
	var updates users.CreatorProfile
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update creator profile fields",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := buildManager(c, logger)
			if err != nil {
				return err
			}
			if err := manager.RestoreSession(cmd.Context()); err != nil {
				return err
			}
			profile, err := manager.UpdateProfile(cmd.Context(), updates)
			if err != nil {
				return err
			}
			fmt.Printf("Profile saved, %d%% complete\n", profile.Completion())
			return nil
		},
	}
	cmd.Flags().StringVar(&updates.Username, "username", "", "public handle")
	cmd.Flags().StringVar(&updates.DisplayName, "display-name", "", "display name")
	cmd.Flags().StringVar(&updates.FullName, "full-name", "", "full name")
	cmd.Flags().StringVar(&updates.Bio, "bio", "", "short bio")
	cmd.Flags().StringVar(&updates.Niche, "niche", "", "content niche")
	cmd.Flags().StringVar(&updates.ProfilePhotoURL, "photo-url", "", "profile photo URL")
	cmd.Flags().StringVar(&updates.Location, "location", "", "location")
	cmd.Flags().StringVar(&updates.Language, "language", "", "primary language")
	cmd.Flags().StringVar(&updates.DateOfBirth, "date-of-birth", "", "date of birth (YYYY-MM-DD)")
	return cmd
}

func resetPasswordCmd(c config.Config, logger zerolog.Logger) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Open the identity provider's password reset page",
		RunE: func(_ *cobra.Command, _ []string) error {
			manager, err := buildManager(c, logger)
			if err != nil {
				return err
			}
			if err := manager.BeginPasswordReset(email); err != nil {
				return err
			}
			fmt.Println("Password reset started in the browser; follow the emailed instructions.")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "pre-fill the reset form with this email")
	return cmd
}
