package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"flakeledger/crypto"
	"flakeledger/rpc"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <address>",
		Short: "Mint a bearer token that authenticates as address",
		Long:  "Mint an HS256 bearer token for flaked. The secret must match the daemon's auth.HMACSecret.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := crypto.ParseAddress(args[0])
			if err != nil {
				return err
			}
			secret, _ := cmd.Flags().GetString("secret")
			if strings.TrimSpace(secret) == "" {
				secret = os.Getenv("FLAKE_JWT_SECRET")
			}
			if strings.TrimSpace(secret) == "" && term.IsTerminal(int(os.Stdin.Fd())) {
				fmt.Fprint(cmd.ErrOrStderr(), "HMAC secret: ")
				raw, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				secret = string(raw)
			}
			if strings.TrimSpace(secret) == "" {
				return errors.New("a secret is required (--secret or FLAKE_JWT_SECRET)")
			}
			issuer, _ := cmd.Flags().GetString("issuer")
			audience, _ := cmd.Flags().GetString("audience")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			token, err := rpc.IssueToken(secret, issuer, audience, crypto.FormatAddress(addr), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("secret", "", "HMAC secret, defaults to $FLAKE_JWT_SECRET or a terminal prompt")
	cmd.Flags().String("issuer", "flake-local", "token issuer")
	cmd.Flags().String("audience", "flake-rpc", "token audience")
	cmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	return cmd
}

func addressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Address utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "convert <address>",
		Short: "Print an address in both bech32 and hex form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := crypto.ParseAddress(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n0x%s\n", crypto.FormatAddress(addr), hex.EncodeToString(addr[:]))
			return nil
		},
	}, &cobra.Command{
		Use:   "new",
		Short: "Generate a secp256k1 key and print its address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ethcrypto.GenerateKey()
			if err != nil {
				return err
			}
			var raw [crypto.AddressLength]byte
			copy(raw[:], ethcrypto.PubkeyToAddress(key.PublicKey).Bytes())
			fmt.Fprintf(cmd.OutOrStdout(), "address: %s\nprivate key: %s\n", crypto.FormatAddress(raw), hex.EncodeToString(ethcrypto.FromECDSA(key)))
			return nil
		},
	})
	return cmd
}
