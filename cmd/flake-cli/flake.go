package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type flakeView struct {
	ID                uint64 `json:"id"`
	Creator           string `json:"creator"`
	State             string `json:"state"`
	FeeBps            uint32 `json:"feeBps"`
	FeeRecipient      string `json:"feeRecipient"`
	Winner            string `json:"winner,omitempty"`
	TotalStake        string `json:"totalStake"`
	LifetimeStake     string `json:"lifetimeStake"`
	DistributedPayout string `json:"distributedPayout"`
	DistributedFee    string `json:"distributedFee"`
	RefundedAmount    string `json:"refundedAmount"`
	CreatedAt         int64  `json:"createdAt"`
	ResolvedAt        int64  `json:"resolvedAt,omitempty"`
	CancelledAt       int64  `json:"cancelledAt,omitempty"`
}

func (v *flakeView) humanize() {
	v.TotalStake = formatAmount(v.TotalStake)
	v.LifetimeStake = formatAmount(v.LifetimeStake)
	v.DistributedPayout = formatAmount(v.DistributedPayout)
	v.DistributedFee = formatAmount(v.DistributedFee)
	v.RefundedAmount = formatAmount(v.RefundedAmount)
}

type amountView struct {
	ID      uint64 `json:"id"`
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func addValueFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("value", "v", "", "attached value in whole units, up to 18 decimals")
	cmd.Flags().Bool("raw", false, "interpret --value as base units")
}

func valueFromFlags(cmd *cobra.Command) (string, error) {
	value, _ := cmd.Flags().GetString("value")
	raw, _ := cmd.Flags().GetBool("raw")
	amount, err := parseAmount(value, raw)
	if err != nil {
		return "", err
	}
	return amount.String(), nil
}

func parseID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid flake id %q", arg)
	}
	return id, nil
}

func createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a flake, optionally with an initial stake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			value, err := valueFromFlags(cmd)
			if err != nil {
				return err
			}
			feeBps, _ := cmd.Flags().GetUint32("fee-bps")
			feeRecipient, _ := cmd.Flags().GetString("fee-recipient")
			beneficiary, _ := cmd.Flags().GetString("beneficiary")
			participants, _ := cmd.Flags().GetStringSlice("participant")
			params := map[string]interface{}{
				"id":                   id,
				"feeBps":               feeBps,
				"expectedParticipants": participants,
				"feeRecipient":         feeRecipient,
				"beneficiary":          beneficiary,
				"value":                value,
			}
			var view flakeView
			if err := clientFromCmd(cmd).call("flake_create", params, &view); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created flake %d with %s staked\n", view.ID, formatAmount(view.TotalStake))
			return nil
		},
	}
	cmd.Flags().Uint32("fee-bps", 0, "protocol fee in basis points (max 1000)")
	cmd.Flags().String("fee-recipient", "", "fee recipient, defaults to the owner")
	cmd.Flags().String("beneficiary", "", "beneficiary of the initial stake, defaults to the caller")
	cmd.Flags().StringSlice("participant", nil, "expected participant, may be repeated")
	addValueFlags(cmd)
	return cmd
}

func stakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stake <id>",
		Short: "Stake value into an active flake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			value, err := valueFromFlags(cmd)
			if err != nil {
				return err
			}
			beneficiary, _ := cmd.Flags().GetString("beneficiary")
			var res amountView
			params := map[string]interface{}{"id": id, "beneficiary": beneficiary, "value": value}
			if err := clientFromCmd(cmd).call("flake_stake", params, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "staked %s on flake %d for %s\n", formatAmount(res.Amount), id, res.Address)
			return nil
		},
	}
	cmd.Flags().String("beneficiary", "", "address credited with the stake, defaults to the caller")
	addValueFlags(cmd)
	cmd.MarkFlagRequired("value")
	return cmd
}

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Pay the pool of a flake to the winner (oracle only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			winner, _ := cmd.Flags().GetString("winner")
			if err := clientFromCmd(cmd).call("flake_resolve", map[string]interface{}{"id": id, "winner": winner}, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resolved flake %d\n", id)
			return nil
		},
	}
	cmd.Flags().StringP("winner", "w", "", "winning participant")
	cmd.MarkFlagRequired("winner")
	return cmd
}

func openRefundsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open-refunds <id>",
		Short: "Move a flake into refunding (oracle only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := clientFromCmd(cmd).call("flake_openRefunds", map[string]interface{}{"id": id}, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refunds open on flake %d\n", id)
			return nil
		},
	}
}

func withdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <id>",
		Short: "Withdraw the caller's refund",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var res amountView
			if err := clientFromCmd(cmd).call("flake_withdrawRefund", map[string]interface{}{"id": id}, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refunded %s to %s\n", formatAmount(res.Amount), res.Address)
			return nil
		},
	}
}

func setOracleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-oracle <address>",
		Short: "Replace the oracle (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]string
			if err := clientFromCmd(cmd).call("flake_setOracle", map[string]interface{}{"oracle": args[0]}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func transferOwnershipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer-ownership <address>",
		Short: "Hand the owner role to another address (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]string
			if err := clientFromCmd(cmd).call("flake_transferOwnership", map[string]interface{}{"owner": args[0]}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func updateFeeRecipientCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-fee-recipient <id> <address>",
		Short: "Change the fee recipient of a flake (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return clientFromCmd(cmd).call("flake_updateFeeRecipient", map[string]interface{}{"id": id, "feeRecipient": args[1]}, nil)
		},
	}
}

func getCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a flake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var view flakeView
			if err := clientFromCmd(cmd).call("flake_get", map[string]interface{}{"id": id}, &view); err != nil {
				return err
			}
			if raw, _ := cmd.Flags().GetBool("raw"); !raw {
				view.humanize()
			}
			return printJSON(cmd, view)
		},
	}
	cmd.Flags().Bool("raw", false, "print amounts in base units")
	return cmd
}

func participantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "participants <id>",
		Short: "List the participants of a flake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var out []map[string]interface{}
			if err := clientFromCmd(cmd).call("flake_participants", map[string]interface{}{"id": id}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func stakeOfCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stake-of <id> <address>",
		Short: "Show the recorded stake of an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var res amountView
			if err := clientFromCmd(cmd).call("flake_stakeOf", map[string]interface{}{"id": id, "address": args[1]}, &res); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatAmount(res.Amount))
			return nil
		},
	}
}

func boolQueryCmd(use, short, method string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id> <address>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var ok bool
			if err := clientFromCmd(cmd).call(method, map[string]interface{}{"id": id, "address": args[1]}, &ok); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}

func isParticipantCmd() *cobra.Command {
	return boolQueryCmd("is-participant", "Report whether an address is registered on a flake", "flake_isParticipant")
}

func hasClaimedCmd() *cobra.Command {
	return boolQueryCmd("has-claimed", "Report whether an address withdrew its refund", "flake_hasClaimedRefund")
}

func rolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "Show the owner, oracle and vault addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]string
			if err := clientFromCmd(cmd).call("flake_roles", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Page through the ledger event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetUint64("from")
			limit, _ := cmd.Flags().GetInt("limit")
			var out []map[string]interface{}
			if err := clientFromCmd(cmd).call("flake_events", map[string]interface{}{"from": from, "limit": limit}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().Uint64("from", 0, "first sequence number to return")
	cmd.Flags().Int("limit", 100, "maximum number of events")
	return cmd
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Show the native balance of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res struct {
				Address string `json:"address"`
				Balance string `json:"balance"`
			}
			if err := clientFromCmd(cmd).call("bank_balance", map[string]interface{}{"address": args[0]}, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", res.Address, formatAmount(res.Balance))
			return nil
		},
	}
}
