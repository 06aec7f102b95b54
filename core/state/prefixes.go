package state

import (
	"encoding/hex"
	"fmt"
)

var (
	productSeqKey   = []byte("catalog/product/seq")
	inventorySeqKey = []byte("catalog/inventory/seq")
	orderSeqKey     = []byte("escrow/order/seq")
	disputeSeqKey   = []byte("dispute/seq")
	operatorsKey    = []byte("dispute/operators")
)

func productKey(id uint64) []byte   { return []byte(fmt.Sprintf("catalog/product/%d", id)) }
func inventoryKey(id uint64) []byte { return []byte(fmt.Sprintf("catalog/inventory/%d", id)) }
func orderKey(id uint64) []byte     { return []byte(fmt.Sprintf("escrow/order/%d", id)) }
func custodyKey(id uint64) []byte   { return []byte(fmt.Sprintf("escrow/custody/%d", id)) }
func disputeKey(id uint64) []byte   { return []byte(fmt.Sprintf("dispute/record/%d", id)) }

func disputeByOrderKey(orderID uint64) []byte {
	return []byte(fmt.Sprintf("dispute/by-order/%d", orderID))
}

func balanceKey(addr [20]byte) []byte {
	return []byte("bank/balance/" + hex.EncodeToString(addr[:]))
}

func allowanceKey(owner, spender [20]byte) []byte {
	return []byte("bank/allowance/" + hex.EncodeToString(owner[:]) + "/" + hex.EncodeToString(spender[:]))
}
