package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightclass/keygate/internal/model"
	"github.com/brightclass/keygate/internal/service"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Issue, list, revoke, and regenerate API keys directly against the local store.",
	}

	cmd.AddCommand(newKeyIssueCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())
	cmd.AddCommand(newKeyRegenerateCmd())

	return cmd
}

// cliKeyService opens the local store and builds a KeyService around it.
// The caller must Close the returned store.
func cliKeyService() (*service.KeyService, func(), error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return service.NewKeyService(store, logger), func() { store.Close() }, nil
}

func printIssuedKey(issued *model.IssuedKey) {
	fmt.Println("API key issued:")
	fmt.Println()
	fmt.Printf("  Secret: %s\n", issued.RawSecret)
	fmt.Printf("  Prefix: %s\n", issued.Key.KeyPrefix)
	fmt.Printf("  Scope:  %s\n", issued.Key.Scope)
	if issued.Key.Label != "" {
		fmt.Printf("  Label:  %s\n", issued.Key.Label)
	}
	fmt.Println()
	fmt.Println("  Save this secret now - it cannot be retrieved again.")
}

// ---------- key issue ----------

func newKeyIssueCmd() *cobra.Command {
	var (
		subject string
		label   string
		scope   string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new API key",
		Long:  "Generate a new API key for a subject. The raw secret is shown once and cannot be retrieved again.",
		Example: `  keygate key issue --subject u_123 --label "CI pipeline"
  keygate key issue --subject u_123 --scope full`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyIssue(subject, label, scope)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject ID to issue the key for (required)")
	cmd.Flags().StringVar(&label, "label", "", "Human-readable label for the key")
	cmd.Flags().StringVar(&scope, "scope", string(model.ScopeRead), "Key scope: read or full")
	cmd.MarkFlagRequired("subject")

	return cmd
}

func runKeyIssue(subject, label, scope string) error {
	svc, closeStore, err := cliKeyService()
	if err != nil {
		return err
	}
	defer closeStore()

	issued, err := svc.Issue(context.Background(), subject, label, model.Scope(scope))
	if err != nil {
		return fmt.Errorf("issue api key: %w", err)
	}

	printIssuedKey(issued)
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var (
		subject    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List a subject's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(subject, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject ID to list keys for (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("subject")

	return cmd
}

func runKeyList(subject string, jsonOutput bool) error {
	svc, closeStore, err := cliKeyService()
	if err != nil {
		return err
	}
	defer closeStore()

	keys, err := svc.List(context.Background(), subject)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(keys)
	}

	if len(keys) == 0 {
		fmt.Println("No API keys found. Use 'keygate key issue' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-18s %-24s %-6s %-8s %-20s\n", "ID", "PREFIX", "LABEL", "SCOPE", "REVOKED", "CREATED")
	fmt.Printf("%-6s %-18s %-24s %-6s %-8s %-20s\n", "--", "------", "-----", "-----", "-------", "-------")
	for _, k := range keys {
		revoked := "no"
		if k.Revoked {
			revoked = "yes"
		}
		fmt.Printf("%-6d %-18s %-24s %-6s %-8s %-20s\n",
			k.ID, k.KeyPrefix, k.Label, k.Scope, revoked, k.CreatedAt.Format(time.RFC3339))
	}

	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key by its ID",
		Long:  "Permanently deactivate an API key. Revocation is terminal; use 'key regenerate' to replace a key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(subject, args[0])
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject ID that owns the key (required)")
	cmd.MarkFlagRequired("subject")

	return cmd
}

func runKeyRevoke(subject, idArg string) error {
	keyID, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid key id %q", idArg)
	}

	svc, closeStore, err := cliKeyService()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := svc.Revoke(context.Background(), subject, keyID); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	fmt.Printf("Revoked API key %d\n", keyID)
	return nil
}

// ---------- key regenerate ----------

func newKeyRegenerateCmd() *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "regenerate <key-id>",
		Short: "Revoke a key and issue a replacement",
		Long:  "Revoke an API key and issue a new one with the same label and scope. The new secret is shown once.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRegenerate(subject, args[0])
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject ID that owns the key (required)")
	cmd.MarkFlagRequired("subject")

	return cmd
}

func runKeyRegenerate(subject, idArg string) error {
	keyID, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid key id %q", idArg)
	}

	svc, closeStore, err := cliKeyService()
	if err != nil {
		return err
	}
	defer closeStore()

	issued, err := svc.Regenerate(context.Background(), subject, keyID)
	if err != nil {
		return fmt.Errorf("regenerate api key: %w", err)
	}

	fmt.Printf("Revoked API key %d and issued a replacement.\n\n", keyID)
	printIssuedKey(issued)
	return nil
}
