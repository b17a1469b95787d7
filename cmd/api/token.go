package main

import (
	"fmt"
	"strings"
	"time"

	"pettrace/internal/adapters/auth/walletsig"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

// authTokenCommand firma un token de modo wallet con una llave local (dev/testing).
func authTokenCommand() *cobra.Command {
	var keyHex string

	cmd := &cobra.Command{
		Use:   "auth-token",
		Short: "Print a wallet auth token for the given private key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
			if err != nil {
				return fmt.Errorf("invalid private key: %w", err)
			}
			token, err := walletsig.Token(key, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "address: %s\ntoken:   %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", "", "hex private key")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
