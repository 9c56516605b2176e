package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"secevents/pkg/auth"
	"secevents/pkg/ui"
)

// credentialManager is the part of auth.Manager the auth commands use
type credentialManager interface {
	credentialSource
	Store(cred *auth.Credential) error
	List() ([]*auth.Credential, error)
	Delete(profile string) error
}

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored access tokens",
	Long: `Manage Secure API access tokens stored per profile.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - SECEVENTS_ACCESS_TOKEN (read only)`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store an access token",
	Example: `  # Store the token of the default profile
  secevents auth login

  # Store a token for another profile
  secevents auth login prod`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove a stored access token",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored profiles with masked tokens",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var baseURLFlag string

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	loginCmd.Flags().StringVar(&baseURLFlag, "base-url", "", "base URL the token belongs to")
}

func profileArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return auth.DefaultProfile
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	profile := profileArg(args)
	out := cmd.OutOrStdout()

	auth.ShowTokenGuide(out)
	fmt.Fprintf(out, "\nAccess token for profile %q: ", profile)

	token, err := readToken(cmd.InOrStdin(), out)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return errors.New("access token is required")
	}

	cred := &auth.Credential{
		Profile:     profile,
		AccessToken: token,
		BaseURL:     baseURLFlag,
	}
	if err := manager.Store(cred); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Token saved for profile %s (%s)", profile, auth.Mask(token)))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	profile := profileArg(args)
	if err := manager.Delete(profile); err != nil {
		return err
	}
	ui.PrintSuccess("Token removed for profile " + profile)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}
	if len(creds) == 0 {
		ui.PrintWarning("No stored tokens. Use 'secevents auth login' to add one")
		return nil
	}

	sort.Slice(creds, func(i, j int) bool { return creds[i].Profile < creds[j].Profile })

	ui.PrintHighlight("Stored profiles")
	for _, cred := range creds {
		sanitized := auth.Sanitize(cred)
		ui.PrintInfo(sanitized.Profile, sanitized.AccessToken)
		if sanitized.BaseURL != "" {
			ui.PrintInfo("  base_url", sanitized.BaseURL)
		}
		if !sanitized.LastModified.IsZero() {
			ui.PrintInfo("  modified", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

// readToken reads a token without echo from a terminal, or a line otherwise
func readToken(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		token, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(token)), nil
	}

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
