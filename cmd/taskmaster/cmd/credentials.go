package cmd

import (
	"io"

	"github.com/spf13/cobra"
	"taskmaster/internal/credentials"
	"taskmaster/internal/utils"
)

// credentialsBackend is the only backend that takes a token
const credentialsBackend = "rest"

// newCredentialsCmd creates the 'credentials' subcommand for credential management
func newCredentialsCmd(a *app) *cobra.Command {
	credentialsCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the rest backend token",
		Long:  "Store, retrieve, and remove the rest backend API token in the system keyring.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	credentialsCmd.PersistentFlags().StringP("username", "u", "", "Account name (default: backends.rest.username)")

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store the token in the system keyring",
		Long:  "Store the token securely in the system keyring (macOS Keychain, Windows Credential Manager, or Linux Secret Service).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.credentialsAccount(cmd)
			if err != nil {
				return err
			}
			promptFlag, _ := cmd.Flags().GetBool("prompt")
			reader, _ := a.stdin()
			return a.credentialsHandler(reader).Set(cmd.Context(), acct, promptFlag)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	setCmd.Flags().Bool("prompt", false, "Prompt for token input (required for security)")
	credentialsCmd.AddCommand(setCmd)

	credentialsCmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show where the token comes from",
		Long:  "Look up the token in the keyring, then the environment, and display the source. The token itself is never printed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.credentialsAccount(cmd)
			if err != nil {
				return err
			}
			return a.credentialsHandler(nil).Get(cmd.Context(), acct, a.json)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	credentialsCmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the token from the system keyring",
		Long:  "Remove the stored token from the system keyring. Environment variables are not affected.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.credentialsAccount(cmd)
			if err != nil {
				return err
			}
			return a.credentialsHandler(nil).Delete(cmd.Context(), acct)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	credentialsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show credential status of the configured account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The account is listed even when no username is configured yet
			acct, _ := a.credentialsAccount(cmd)
			acct.Backend = credentialsBackend
			return a.credentialsHandler(nil).List(cmd.Context(), []credentials.Account{acct}, a.json)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return credentialsCmd
}

// credentialsAccount returns the rest account named by --username, falling
// back to the configured rest username
func (a *app) credentialsAccount(cmd *cobra.Command) (credentials.Account, error) {
	username, _ := cmd.Flags().GetString("username")
	if username == "" {
		username = a.conf.Backends.REST.Username
	}
	if username == "" {
		return credentials.Account{}, utils.ErrBackendNotConfigured("rest username (pass --username)")
	}
	return credentials.Account{Backend: credentialsBackend, Username: username}, nil
}

func (a *app) credentialsHandler(stdin io.Reader) *credentials.CLIHandler {
	return credentials.NewCLIHandler(a.credentials(), stdin, a.stdout, a.stderr)
}
