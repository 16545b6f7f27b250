package cli

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/lootex/aggregatord/internal/builder"
	"github.com/lootex/aggregatord/internal/chain"
	"github.com/lootex/aggregatord/internal/config"
	"github.com/lootex/aggregatord/internal/numeric"
	"github.com/lootex/aggregatord/internal/order"
	"github.com/lootex/aggregatord/internal/seaport"
)

var (
	buildChain string
	buildMaker string
	buildKey   string
	buildBulk  bool
)

// buildCmd expands an intent file into signed orders without touching
// the mirror; useful for listing assets from scripts and for debugging
// order parameters.
var buildCmd = &cobra.Command{
	Use:   "build-orders <intents.json>",
	Short: "Build (and optionally sign) orders from an intent file",
	Long: `Expand maker intents from a JSON file into fully parameterized
orders, print the resulting action plan, and when a signing key is given
resolve the signature actions in place. Approve and submit actions are
printed for the caller to execute.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuildOrders,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&buildChain, "chain", "", "chain tag from the config (required)")
	buildCmd.Flags().StringVar(&buildMaker, "maker", "", "maker address (required unless --key is given)")
	buildCmd.Flags().StringVar(&buildKey, "key", "", "hex private key used to sign; omit to leave orders unsigned")
	buildCmd.Flags().BoolVar(&buildBulk, "bulk", false, "sign the batch through the merkle path with one signature")
}

// intentFile is the on-disk shape of one build request.
type intentFile struct {
	Intents []intentSpec `json:"intents"`
	SaltTag string       `json:"salt_tag"`
}

type intentSpec struct {
	Category   string    `json:"category"`
	Token      string    `json:"token"`
	TokenID    string    `json:"token_id"`
	Kind       string    `json:"kind"`
	Quantity   string    `json:"quantity"`
	Currency   currency  `json:"currency"`
	TotalPrice string    `json:"total_price"`
	StartTime  int64     `json:"start_time"`
	EndTime    int64     `json:"end_time"`
	Fees       []feeSpec `json:"fees"`
}

type currency struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

type feeSpec struct {
	Recipient   string `json:"recipient"`
	BasisPoints uint32 `json:"bps"`
}

func runBuildOrders(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}

	cc, ok := cfg.Chains[buildChain]
	if !ok {
		return fmt.Errorf("chain %q not configured", buildChain)
	}

	var signer chain.Signer
	maker := common.HexToAddress(buildMaker)
	if buildKey != "" {
		keySigner, err := chain.NewKeySigner(buildKey)
		if err != nil {
			return err
		}
		signer = keySigner
		maker = keySigner.Address()
	}
	if maker == (common.Address{}) {
		return fmt.Errorf("a maker address or signing key is required")
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var file intentFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse intent file: %w", err)
	}
	intents, err := parseIntents(file.Intents)
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	reader, err := chain.Dial(cc.RPCURL, cc.ChainID)
	if err != nil {
		return fmt.Errorf("dial chain %s: %w", buildChain, err)
	}

	b := builder.New(reader, cc.ChainID, cc.SettlementAddress(), common.Address{}, logger)
	plan, err := b.Build(cmd.Context(), maker, intents, builder.Options{
		BulkSign: buildBulk,
		SaltTag:  file.SaltTag,
	})
	if err != nil {
		return err
	}

	if signer != nil {
		if err := builder.SignActions(plan.Actions, signer); err != nil {
			return err
		}
	}

	return printPlan(cmd, plan)
}

func parseIntents(specs []intentSpec) ([]builder.Intent, error) {
	intents := make([]builder.Intent, 0, len(specs))
	for i, spec := range specs {
		intent := builder.Intent{
			Category:  order.Category(spec.Category),
			Token:     common.HexToAddress(spec.Token),
			StartTime: time.Unix(spec.StartTime, 0),
			EndTime:   time.Unix(spec.EndTime, 0),
			Currency: numeric.Currency{
				Symbol:   spec.Currency.Symbol,
				Address:  common.HexToAddress(spec.Currency.Address),
				Decimals: spec.Currency.Decimals,
			},
		}

		switch spec.Kind {
		case "erc721":
			intent.TokenKind = seaport.ItemERC721
		case "erc1155":
			intent.TokenKind = seaport.ItemERC1155
		default:
			return nil, fmt.Errorf("intent %d: unknown token kind %q", i, spec.Kind)
		}

		var ok bool
		if spec.TokenID != "" {
			if intent.TokenID, ok = new(big.Int).SetString(spec.TokenID, 10); !ok {
				return nil, fmt.Errorf("intent %d: bad token id %q", i, spec.TokenID)
			}
		}
		if intent.TotalPrice, ok = new(big.Int).SetString(spec.TotalPrice, 10); !ok {
			return nil, fmt.Errorf("intent %d: bad total price %q", i, spec.TotalPrice)
		}
		quantity := spec.Quantity
		if quantity == "" {
			quantity = "1"
		}
		if intent.Quantity, ok = new(big.Int).SetString(quantity, 10); !ok {
			return nil, fmt.Errorf("intent %d: bad quantity %q", i, spec.Quantity)
		}

		for _, fee := range spec.Fees {
			intent.Fees = append(intent.Fees, builder.Fee{
				Recipient:   common.HexToAddress(fee.Recipient),
				BasisPoints: fee.BasisPoints,
			})
		}
		intents = append(intents, intent)
	}
	return intents, nil
}

func printPlan(cmd *cobra.Command, plan *builder.Plan) error {
	out := cmd.OutOrStdout()
	for _, action := range plan.Actions {
		if approve, ok := action.(*builder.ApproveAction); ok {
			tx, err := builder.BuildTransaction(approve)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "approve %s via %s data=0x%x\n",
				approve.Token.Hex(), approve.Operator.Hex(), tx.Data)
			continue
		}
		fmt.Fprintf(out, "action: %s\n", action.Kind())
	}
	for _, o := range plan.Orders {
		fmt.Fprintf(out, "order %s signature=0x%x\n", o.Hash.Hex(), o.Signature)
	}
	return nil
}
