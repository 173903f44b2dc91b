package network

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const erc20JSON = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

// TransferTopic is the topic hash of Transfer(address,address,uint256).
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

var erc20ABI = mustParseABI(erc20JSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse erc20 abi: %v", err))
	}
	return parsed
}

// PackTransfer returns calldata for transfer(to, amount).
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("transfer", to, amount)
}

// PackBalanceOf returns calldata for balanceOf(owner).
func PackBalanceOf(owner common.Address) ([]byte, error) {
	return erc20ABI.Pack("balanceOf", owner)
}

// PackDecimals returns calldata for decimals().
func PackDecimals() ([]byte, error) {
	return erc20ABI.Pack("decimals")
}

func unpackBalance(out []byte) (*big.Int, error) {
	res, err := erc20ABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	v, ok := res[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned %T", res[0])
	}
	return v, nil
}

func unpackDecimals(out []byte) (uint8, error) {
	res, err := erc20ABI.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	v, ok := res[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals returned %T", res[0])
	}
	return v, nil
}

// addressTopic left-pads an address into a 32-byte log topic.
func addressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}
