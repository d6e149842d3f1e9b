package main

import (
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "txengine",
		Usage: "Multi-chain transaction lifecycle engine",
		Description: `txengine prepares, signs, broadcasts and tracks transactions on every
supported network. Node endpoints come from the config file or from
TXENGINE_NODE_<CHAIN> environment variables.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				EnvVars: []string{"TXENGINE_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				EnvVars: []string{"DEBUG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "chains",
				Usage:  "List the networks the engine supports and whether a node is configured",
				Action: chainsAction,
			},
			{
				Name:   "preload",
				Usage:  "Fetch nonce, fees and chain data for an intent",
				Flags:  intentFlags,
				Action: preloadAction,
			},
			{
				Name:   "sign",
				Usage:  "Preload an intent and sign it without broadcasting",
				Flags:  concat(intentFlags, signFlags),
				Action: signAction,
			},
			{
				Name:  "broadcast",
				Usage: "Submit hex encoded signed payloads in order",
				Flags: []cli.Flag{
					chainFlag,
					&cli.StringFlag{Name: "from", Usage: "Sender address", Required: true},
					&cli.StringFlag{Name: "type", Usage: "Transaction type", Value: "transfer"},
					&cli.StringSliceFlag{Name: "tx", Usage: "Signed payload in hex, repeat for multi-step transactions", Required: true},
				},
				Action: broadcastAction,
			},
			{
				Name:  "status",
				Usage: "Query the state of a submitted transaction",
				Flags: []cli.Flag{
					chainFlag,
					&cli.StringFlag{Name: "hash", Usage: "Transaction id", Required: true},
					&cli.StringFlag{Name: "block", Usage: "Block the transaction is in, when the network needs it"},
					&cli.StringFlag{Name: "sender", Usage: "Sender address, when the network needs it"},
					&cli.BoolFlag{Name: "wait", Usage: "Poll until the transaction reaches a terminal state"},
				},
				Action: statusAction,
			},
			{
				Name:  "node-status",
				Usage: "Report the health of a node",
				Flags: []cli.Flag{
					chainFlag,
					&cli.StringFlag{Name: "url", Usage: "Node endpoint, defaults to the configured node"},
				},
				Action: nodeStatusAction,
			},
			{
				Name:   "send",
				Usage:  "Preload, sign, broadcast and wait for the transaction to settle",
				Flags:  concat(intentFlags, signFlags),
				Action: sendAction,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var chainFlag = &cli.StringFlag{
	Name:     "chain",
	Usage:    "Network identifier, e.g. ethereum, bitcoin, solana",
	Required: true,
	EnvVars:  []string{"TXENGINE_CHAIN"},
}

var intentFlags = []cli.Flag{
	chainFlag,
	&cli.StringFlag{Name: "type", Usage: "Transaction type (transfer, swap, token_approval, stake_delegate, ...)", Value: "transfer"},
	&cli.StringFlag{Name: "from", Usage: "Sender address", Required: true},
	&cli.StringFlag{Name: "to", Usage: "Recipient address"},
	&cli.StringFlag{Name: "amount", Usage: "Amount in whole units, e.g. 0.25", Value: "0"},
	&cli.IntFlag{Name: "decimals", Usage: "Decimals of the asset, defaults to the native coin's"},
	&cli.StringFlag{Name: "token", Usage: "Token id (contract, mint, coin type), empty for the native coin"},
	&cli.BoolFlag{Name: "max", Usage: "Spend the whole balance"},
	&cli.StringFlag{Name: "memo", Usage: "Memo or comment attached to the transaction"},
	&cli.StringFlag{Name: "validator", Usage: "Validator of a staking action"},
	&cli.StringFlag{Name: "src-validator", Usage: "Validator stake moves away from on redelegation"},
	&cli.StringFlag{Name: "delegation", Usage: "Delegation id, for networks that track one"},
	&cli.StringFlag{Name: "spender", Usage: "Spender of a token approval"},
	&cli.StringFlag{Name: "swap-to", Usage: "Contract a swap calls"},
	&cli.StringFlag{Name: "swap-data", Usage: "Hex encoded provider payload of a swap"},
	&cli.StringFlag{Name: "swap-value", Usage: "Native value sent with a swap, in base units"},
	&cli.Uint64Flag{Name: "swap-gas-limit", Usage: "Gas limit quoted by the swap provider"},
	&cli.StringFlag{Name: "swap-spender", Usage: "Spender the swap needs an allowance granted to"},
}

var signFlags = []cli.Flag{
	&cli.StringFlag{Name: "priority", Usage: "Fee priority: slow, normal or fast", Value: "normal"},
	&cli.StringFlag{Name: "balance", Usage: "Balance in base units, used with --max to derive the final amount"},
	&cli.StringFlag{
		Name:    "private-key",
		Usage:   "Private key for transaction signing (hex format, with or without 0x prefix)",
		EnvVars: []string{"TXENGINE_PRIVATE_KEY"},
	},
	&cli.StringFlag{
		Name:    "aws-secret-name",
		Usage:   "AWS Secrets Manager secret holding the private key, overrides aws.secret_name",
		EnvVars: []string{"TXENGINE_AWS_SECRET_NAME"},
	},
}

func concat(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
