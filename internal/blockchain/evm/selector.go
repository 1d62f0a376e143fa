package evm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// signaturePattern matches a canonical function signature such as
// transfer(address,uint256). Argument types must already be canonical
// (no spaces, no parameter names).
var signaturePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*\(([A-Za-z0-9_\[\](),]*)\)$`)

// IsFunctionSignature reports whether sig is a canonical function signature
func IsFunctionSignature(sig string) bool {
	return signaturePattern.MatchString(sig)
}

// FunctionSelector computes the 4-byte selector of a function signature
//
// selector = keccak256(signature)[:4]
//
// Example: transfer(address,uint256) -> 0xa9059cbb
func FunctionSelector(sig string) ([4]byte, error) {
	var selector [4]byte

	sig = strings.TrimSpace(sig)
	if sig == "" {
		return selector, fmt.Errorf("function signature cannot be empty")
	}
	if !IsFunctionSignature(sig) {
		return selector, fmt.Errorf("invalid function signature %q", sig)
	}

	hash := crypto.Keccak256([]byte(sig))
	copy(selector[:], hash[:4])
	return selector, nil
}

// FunctionSelectorHex returns the selector as a 0x-prefixed hex string
func FunctionSelectorHex(sig string) (string, error) {
	selector, err := FunctionSelector(sig)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(selector[:]), nil
}

// ChecksumAddress returns the EIP-55 form of a 20-byte hex address
func ChecksumAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q", address)
	}
	return common.HexToAddress(address).Hex(), nil
}

// IsAddress reports whether s is a 20-byte hex address, with or without 0x
func IsAddress(s string) bool {
	return common.IsHexAddress(s)
}
