package seaport

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	ContractName    = "Seaport"
	ContractVersion = "1.6"
)

var (
	// Seaport 1.6 is deployed at the same address on every supported chain.
	SeaportV16Address = common.HexToAddress("0x0000000000000068F116a894984e2DB1123eB395")
	SeaportV15Address = common.HexToAddress("0x00000000000000ADc04C56Bf30aC9d3c0aAF14dC")

	OpenSeaConduitKey     = common.HexToHash("0x0000007b02230091a7ed01230072f7006a004d60a8d4e71d599b8104250f0000")
	OpenSeaConduitAddress = common.HexToAddress("0x1e0049783f008a0085193e00003d00cd54003c71")
	OpenSeaFeeCollector   = common.HexToAddress("0x0000a26b00c1F0DF003000390027140000fAa719")
)

// MaxInt256 is the allowance granted by unconditional ERC20 approvals.
var MaxInt256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
