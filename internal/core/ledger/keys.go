package ledger

import (
	"fmt"

	"github.com/levyledger/levyd/internal/types"
)

// Key space of the backing state store. The first byte partitions record
// kinds; everything under one prefix shares an encoding.
const (
	prefixParams      byte = 0x01 // singleton Params record
	prefixBalance     byte = 0x02 // len(asset) | asset | account -> amount
	prefixSupply      byte = 0x03 // asset -> amount
	prefixCategory    byte = 0x04 // category -> CategoryState
	prefixPlan        byte = 0x05 // category -> PayoutPlan
	prefixMember      byte = 0x06 // set | account -> presence
	prefixClass       byte = 0x07 // side | account -> category
	prefixDistributed byte = 0x08 // ledger kind | account -> amount
)

// Distributed-value ledger kinds under prefixDistributed.
const (
	distNative    byte = 0x00
	distSecondary byte = 0x01
)

func paramsKey() []byte {
	return []byte{prefixParams}
}

func balanceKeyBytes(asset types.Asset, account types.AccountID) []byte {
	key := make([]byte, 0, 2+len(asset)+types.AccountIDSize)
	key = append(key, prefixBalance, byte(len(asset)))
	key = append(key, asset...)
	key = append(key, account[:]...)
	return key
}

func parseBalanceKey(key []byte) (types.Asset, types.AccountID, error) {
	if len(key) < 2 || key[0] != prefixBalance {
		return "", types.AccountID{}, fmt.Errorf("malformed balance key %x", key)
	}
	assetLen := int(key[1])
	if len(key) != 2+assetLen+types.AccountIDSize {
		return "", types.AccountID{}, fmt.Errorf("malformed balance key %x", key)
	}
	asset := types.Asset(key[2 : 2+assetLen])
	account, err := types.AccountIDFromBytes(key[2+assetLen:])
	return asset, account, err
}

func supplyKey(asset types.Asset) []byte {
	key := make([]byte, 0, 1+len(asset))
	key = append(key, prefixSupply)
	key = append(key, asset...)
	return key
}

func categoryKey(cat types.Category) []byte {
	return []byte{prefixCategory, byte(cat)}
}

func planKey(cat types.Category) []byte {
	return []byte{prefixPlan, byte(cat)}
}

func memberKeyBytes(set MemberSet, account types.AccountID) []byte {
	key := make([]byte, 0, 2+types.AccountIDSize)
	key = append(key, prefixMember, byte(set))
	key = append(key, account[:]...)
	return key
}

func parseMemberKey(key []byte) (MemberSet, types.AccountID, error) {
	if len(key) != 2+types.AccountIDSize || key[0] != prefixMember {
		return 0, types.AccountID{}, fmt.Errorf("malformed member key %x", key)
	}
	account, err := types.AccountIDFromBytes(key[2:])
	return MemberSet(key[1]), account, err
}

func classKeyBytes(side ClassSide, account types.AccountID) []byte {
	key := make([]byte, 0, 2+types.AccountIDSize)
	key = append(key, prefixClass, byte(side))
	key = append(key, account[:]...)
	return key
}

func parseClassKey(key []byte) (ClassSide, types.AccountID, error) {
	if len(key) != 2+types.AccountIDSize || key[0] != prefixClass {
		return 0, types.AccountID{}, fmt.Errorf("malformed class key %x", key)
	}
	account, err := types.AccountIDFromBytes(key[2:])
	return ClassSide(key[1]), account, err
}

func distributedKeyBytes(kind byte, account types.AccountID) []byte {
	key := make([]byte, 0, 2+types.AccountIDSize)
	key = append(key, prefixDistributed, kind)
	key = append(key, account[:]...)
	return key
}

func parseDistributedKey(key []byte) (byte, types.AccountID, error) {
	if len(key) != 2+types.AccountIDSize || key[0] != prefixDistributed {
		return 0, types.AccountID{}, fmt.Errorf("malformed distributed key %x", key)
	}
	account, err := types.AccountIDFromBytes(key[2:])
	return key[1], account, err
}
