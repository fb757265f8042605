package chain

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransferEventTopic is keccak256("Transfer(address,address,uint256)").
var TransferEventTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

var hashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// AddressTopic left-pads an address to the 32-byte form used for indexed event args.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// IsHash reports whether s is a 0x-prefixed 32-byte hex string.
func IsHash(s string) bool {
	return hashPattern.MatchString(s)
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	return common.IsHexAddress(s) && strings.HasPrefix(strings.ToLower(s), "0x")
}

// IsTransferTo reports whether lg is an ERC-20 Transfer emitted by token with
// recipient to. Hash comparison is on bytes, so address casing is irrelevant.
func IsTransferTo(lg types.Log, token, to common.Address) bool {
	if lg.Address != token {
		return false
	}
	if len(lg.Topics) < 3 || lg.Topics[0] != TransferEventTopic {
		return false
	}
	return lg.Topics[2] == AddressTopic(to)
}

// DecodeTransferAmount decodes the uint256 value carried in a Transfer log's data.
func DecodeTransferAmount(lg types.Log) *big.Int {
	if len(lg.Data) == 0 {
		return new(big.Int)
	}
	data := lg.Data
	if len(data) > 32 {
		data = data[:32]
	}
	return new(big.Int).SetBytes(data)
}

// ReferencesHash reports whether any log in the receipt carries ref as a topic,
// the way ERC-4337 EntryPoint emits UserOperationEvent(bytes32 indexed userOpHash, ...),
// or as one of the 32-byte words of its data, where non-indexed bytes32 fields land.
func ReferencesHash(receipt *types.Receipt, ref common.Hash) bool {
	if receipt == nil {
		return false
	}
	if receipt.TxHash == ref {
		return true
	}
	for _, lg := range receipt.Logs {
		if lg == nil {
			continue
		}
		for _, topic := range lg.Topics {
			if topic == ref {
				return true
			}
		}
		for off := 0; off+common.HashLength <= len(lg.Data); off += common.HashLength {
			if common.BytesToHash(lg.Data[off:off+common.HashLength]) == ref {
				return true
			}
		}
	}
	return false
}
