package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	defaultRPC = "http://127.0.0.1:8645"
	envRPC     = "FLAKE_RPC_URL"
	envToken   = "FLAKE_RPC_TOKEN"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "flake-cli",
		Short:         "Command line client for the flake escrow ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rpcURL := os.Getenv(envRPC)
	if rpcURL == "" {
		rpcURL = defaultRPC
	}
	rootCmd.PersistentFlags().String("rpc", rpcURL, "JSON-RPC endpoint of flaked")
	rootCmd.PersistentFlags().String("token", os.Getenv(envToken), "bearer token for authenticated methods")

	rootCmd.AddCommand(
		createCmd(),
		stakeCmd(),
		resolveCmd(),
		openRefundsCmd(),
		withdrawCmd(),
		setOracleCmd(),
		transferOwnershipCmd(),
		updateFeeRecipientCmd(),
		getCmd(),
		participantsCmd(),
		stakeOfCmd(),
		isParticipantCmd(),
		hasClaimedCmd(),
		rolesCmd(),
		eventsCmd(),
		balanceCmd(),
		tokenCmd(),
		addressCmd(),
	)
	return rootCmd
}
