package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the Gemini API key",
	Long:  `The key is encrypted against this device before it is stored; it never reaches disk as plaintext.`,
}

var keySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the API key",
	Example: `  artvault key set
  artvault key set --key AIza...`,
	RunE: runKeySet,
}

var keyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a key is stored and which tier serves it",
	RunE:  runKeyStatus,
}

var keyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Probe the API with the stored key",
	RunE:  runKeyTest,
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored key",
	RunE:  runKeyDelete,
}

var keyValue string

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keySetCmd, keyStatusCmd, keyTestCmd, keyDeleteCmd)

	keySetCmd.Flags().StringVar(&keyValue, "key", "",
		"API key (will prompt without echo if not provided)")
}

func runKeySet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	key := keyValue
	if key == "" {
		var err error
		key, err = promptSecret("API key: ")
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		key = strings.TrimSpace(key)
	}

	if err := apiClient.Keys.Store(ctx, key); err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{"success": false, "error": err.Error()})
		}
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "tier": apiClient.Keys.Tier()})
	} else {
		printSuccess("API key stored (%s tier)", apiClient.Keys.Tier())
	}
	return nil
}

func runKeyStatus(cmd *cobra.Command, args []string) error {
	status, err := apiClient.Keys.GetStatus(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(status)
		return nil
	}

	if !status.HasKey {
		printInfo("No API key stored")
		return nil
	}

	printInfo("API key stored")
	printInfo("  Tier:      %s", status.Tier)
	printInfo("  Created:   %s", status.CreatedAt.Local().Format("2006-01-02 15:04"))
	printInfo("  Last used: %s", status.LastUsedAt.Local().Format("2006-01-02 15:04"))
	if status.IsValid != nil {
		verdict := "rejected"
		if *status.IsValid {
			verdict = "accepted"
		}
		printInfo("  Validated: %s (%s)", status.LastValidated.Local().Format("2006-01-02 15:04"), verdict)
	}
	return nil
}

func runKeyTest(cmd *cobra.Command, args []string) error {
	valid, err := apiClient.Keys.TestConnection(context.Background())
	if err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{"valid": false, "error": err.Error()})
		}
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"valid": valid})
		return nil
	}

	if valid {
		printSuccess("API key accepted")
	} else {
		printError("API key rejected by the service")
	}
	return nil
}

func runKeyDelete(cmd *cobra.Command, args []string) error {
	if err := apiClient.Keys.Delete(context.Background()); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true})
	} else {
		printSuccess("API key deleted")
	}
	return nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read without echo
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", err
	}
	return string(secret), nil
}
