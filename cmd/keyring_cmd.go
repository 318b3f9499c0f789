package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentgate/internal/config"
	"github.com/nextlevelbuilder/agentgate/internal/crypto"
)

func keyringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyring",
		Short: "Manage secrets in the OS keyring",
	}
	cmd.AddCommand(keyringSetEncryptionKeyCmd())
	return cmd
}

func keyringSetEncryptionKeyCmd() *cobra.Command {
	var generate bool
	cmd := &cobra.Command{
		Use:   "set-encryption-key",
		Short: "Store the API-key encryption key in the OS keyring",
		Long: "Reads the key from stdin (64 hex chars, or any passphrase) or generates a new one " +
			"with --generate. Changing the key makes previously stored API keys unreadable.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if generate {
				k, err := crypto.GenerateKey()
				if err != nil {
					return err
				}
				key = k
			} else {
				fmt.Fprint(os.Stderr, "Encryption key: ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read key: %w", err)
				}
				key = strings.TrimSpace(line)
			}
			if key == "" {
				return errors.New("empty encryption key")
			}
			if _, err := crypto.NewCipher(key); err != nil {
				return fmt.Errorf("invalid encryption key: %w", err)
			}
			if err := config.StoreEncryptionKey(key); err != nil {
				return err
			}
			fmt.Println("Encryption key stored in the OS keyring.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&generate, "generate", false, "generate a random key instead of reading stdin")
	return cmd
}
