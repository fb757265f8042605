package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
)

var (
	token  = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	wallet = common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func transferLog(from, to common.Address, amount int64) types.Log {
	return types.Log{
		Address: token,
		Topics:  []common.Hash{TransferEventTopic, AddressTopic(from), AddressTopic(to)},
		Data:    common.LeftPadBytes(big.NewInt(amount).Bytes(), 32),
	}
}

func TestTransferEventTopic(t *testing.T) {
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", TransferEventTopic.Hex())
}

func TestAddressTopic_IsLeftPaddedAndCaseInsensitive(t *testing.T) {
	upper := common.HexToAddress("0xABCDEF0000000000000000000000000000000001")
	lower := common.HexToAddress("0xabcdef0000000000000000000000000000000001")

	assert.Equal(t, AddressTopic(upper), AddressTopic(lower))
	assert.Equal(t, "0x000000000000000000000000abcdef0000000000000000000000000000000001", AddressTopic(upper).Hex())
}

func TestIsTransferTo(t *testing.T) {
	lg := transferLog(sender, wallet, 1_000_000)
	assert.True(t, IsTransferTo(lg, token, wallet))
	assert.False(t, IsTransferTo(lg, token, sender), "recipient mismatch")

	other := lg
	other.Address = common.HexToAddress("0x9999999999999999999999999999999999999999")
	assert.False(t, IsTransferTo(other, token, wallet), "different token contract")

	approval := lg
	approval.Topics = []common.Hash{common.HexToHash("0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925"), AddressTopic(sender), AddressTopic(wallet)}
	assert.False(t, IsTransferTo(approval, token, wallet), "not a Transfer event")

	short := lg
	short.Topics = short.Topics[:2]
	assert.False(t, IsTransferTo(short, token, wallet))
}

func TestDecodeTransferAmount(t *testing.T) {
	assert.Equal(t, big.NewInt(500_000), DecodeTransferAmount(transferLog(sender, wallet, 500_000)))
	assert.Equal(t, 0, DecodeTransferAmount(types.Log{}).Sign())
}

func TestIsHash(t *testing.T) {
	assert.True(t, IsHash("0x"+"ab"+"00000000000000000000000000000000000000000000000000000000000000"))
	assert.False(t, IsHash("0x1234"))
	assert.False(t, IsHash("dev_123"))
	assert.False(t, IsHash("ab00000000000000000000000000000000000000000000000000000000000000"))
}

func TestReferencesHash(t *testing.T) {
	userOp := common.HexToHash("0x5555555555555555555555555555555555555555555555555555555555555555")
	receipt := &types.Receipt{
		TxHash: common.HexToHash("0xabc"),
		Logs: []*types.Log{
			{Topics: []common.Hash{common.HexToHash("0x49628fd1471006c1482da88028e9ce4dbb080b815c9b0344d39e5a8e6ec1419f"), userOp}},
		},
	}

	assert.True(t, ReferencesHash(receipt, userOp))
	assert.True(t, ReferencesHash(receipt, common.HexToHash("0xabc")))
	assert.False(t, ReferencesHash(receipt, common.HexToHash("0xdead")))
	assert.False(t, ReferencesHash(nil, userOp))
}

func TestReferencesHash_DataWord(t *testing.T) {
	ref := common.HexToHash("0x7777777777777777777777777777777777777777777777777777777777777777")
	data := append(common.LeftPadBytes([]byte{0x01}, 32), ref.Bytes()...)
	receipt := &types.Receipt{
		TxHash: common.HexToHash("0xabc"),
		Logs:   []*types.Log{{Data: data}},
	}
	assert.True(t, ReferencesHash(receipt, ref))

	// only word-aligned matches count
	shifted := &types.Receipt{Logs: []*types.Log{{Data: append([]byte{0x00}, ref.Bytes()...)}}}
	assert.False(t, ReferencesHash(shifted, ref))
}
