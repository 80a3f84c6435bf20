package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JeanGrijp/settlement-guard/internal/core/services"
)

func newGenerateSecretCmd() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "generate-secret",
		Short: "Print a random hex key for GATEWAY_KEY_SECRET or SESSION_JWT_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size < 16 {
				return fmt.Errorf("--bytes must be at least 16")
			}
			key := make([]byte, size)
			if _, err := rand.Read(key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(key))
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "bytes", 32, "number of random bytes")
	return cmd
}

func newSignCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "sign [orderId] [paymentId]",
		Short: "Compute the payment signature for an order and payment",
		Long: `Compute hex(HMAC-SHA256(secret, orderId|paymentId)), the signature the
gateway sends with a payment confirmation. Useful for local testing and
manual reconciliation.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("GATEWAY_KEY_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or GATEWAY_KEY_SECRET is required")
			}
			fmt.Fprintln(cmd.OutOrStdout(), services.PaymentSignature([]byte(secret), args[0], args[1]))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "gateway key secret (defaults to GATEWAY_KEY_SECRET)")
	return cmd
}
