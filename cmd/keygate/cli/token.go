package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/brightclass/keygate/internal/service"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint development session tokens",
		Long:  "Mint signed session tokens for local development and testing against a keygate server.",
	}

	cmd.AddCommand(newTokenIssueCmd())

	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		subject string
		name    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed session token",
		Long: `Issue an HS256 session token for a subject, signed with the configured
jwt secret. If no secret is configured, the command prompts for one.`,
		Example: `  keygate token issue --subject u_123 --name "Ada Lovelace"
  keygate token issue --subject u_123 --ttl 15m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenIssue(subject, name, ttl)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject ID to embed in the token (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("subject")

	return cmd
}

func runTokenIssue(subject, name string, ttl time.Duration) error {
	secret := viper.GetString("auth.jwt_secret")
	if secret == "" {
		// Prompt without echo so the secret never lands in shell history
		// or terminal scrollback.
		fmt.Print("JWT signing secret: ")
		secretBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		fmt.Println()
		secret = string(secretBytes)
	}
	if secret == "" {
		return fmt.Errorf("jwt secret must not be empty")
	}

	verifier := service.NewJWTVerifier(secret)
	token, err := verifier.Issue(subject, name, ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Println("Session token issued:")
	fmt.Println()
	fmt.Printf("  %s\n", token)
	fmt.Println()
	fmt.Printf("  Expires in %s. Pass it as: Authorization: Bearer <token>\n", ttl)
	return nil
}
