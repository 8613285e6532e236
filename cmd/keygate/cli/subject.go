package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brightclass/keygate/internal/model"
)

func newSubjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subject",
		Short: "Manage subject profiles",
		Long:  "Inspect and update the subscription tier and credit balance of platform subjects.",
	}

	cmd.AddCommand(newSubjectShowCmd())
	cmd.AddCommand(newSubjectSetCmd())

	return cmd
}

// ---------- subject show ----------

func newSubjectShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <subject-id>",
		Short: "Show a subject's tier and credit balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubjectShow(args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runSubjectShow(subjectID string, jsonOutput bool) error {
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	profile, err := store.GetSubjectProfile(context.Background(), subjectID)
	if err != nil {
		return fmt.Errorf("get subject profile: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	}

	fmt.Printf("Subject: %s\n", profile.SubjectID)
	fmt.Printf("  Tier:    %s\n", profile.Tier)
	fmt.Printf("  Credits: %d\n", profile.Credits)
	return nil
}

// ---------- subject set ----------

func newSubjectSetCmd() *cobra.Command {
	var (
		tier    string
		credits int64
	)

	cmd := &cobra.Command{
		Use:   "set <subject-id>",
		Short: "Set a subject's tier and credit balance",
		Example: `  keygate subject set u_123 --tier pro --credits 5000
  keygate subject set u_123 --credits 0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubjectSet(args[0], tier, credits, cmd.Flags().Changed("credits"))
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "", "Subscription tier: free, plus, or pro")
	cmd.Flags().Int64Var(&credits, "credits", 0, "Credit balance")

	return cmd
}

func runSubjectSet(subjectID, tier string, credits int64, creditsSet bool) error {
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	// Start from the current profile so a partial update keeps the other field.
	profile, err := store.GetSubjectProfile(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("get subject profile: %w", err)
	}

	if tier != "" {
		t := model.Tier(tier)
		if !t.Valid() {
			return fmt.Errorf("invalid tier %q (expected free, plus, or pro)", tier)
		}
		profile.Tier = t
	}
	if creditsSet {
		if credits < 0 {
			return fmt.Errorf("credits must not be negative")
		}
		profile.Credits = credits
	}

	if err := store.SetSubjectProfile(ctx, profile); err != nil {
		return fmt.Errorf("set subject profile: %w", err)
	}

	fmt.Printf("Updated subject %s (tier=%s, credits=%d)\n", profile.SubjectID, profile.Tier, profile.Credits)
	return nil
}
