// Package erc20 encodes the token calls shared by the EVM and Tron implementations.
package erc20

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

const tokenABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

var parsed abi.ABI

func init() {
	var err error
	parsed, err = abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		panic(fmt.Sprintf("invalid erc20 abi: %v", err))
	}
}

// MaxAllowance is the allowance granted by approvals.
var MaxAllowance = new(big.Int).Set(math.MaxBig256)

// Transfer returns the calldata of transfer(to, amount).
func Transfer(to common.Address, amount *big.Int) ([]byte, error) {
	return parsed.Pack("transfer", to, amount)
}

// Approve returns the calldata of approve(spender, amount).
func Approve(spender common.Address, amount *big.Int) ([]byte, error) {
	return parsed.Pack("approve", spender, amount)
}
