// Package chains provides the canonical cross-chain type conversions
// between the supported chain adapters. The mappings here must match the
// representations the deployed swap contracts agree on.
package chains

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"github.com/boymaas/atomic-bridge/bridge"
)

// Hashes are 32 bytes on both chains and map byte-identically. An EVM
// address occupies the low 20 bytes of a 32-byte Solana key, left-padded
// with zeros; the reverse mapping takes the low 20 bytes.

// EVMAddressToSolana widens a 20-byte EVM address into a 32-byte key.
func EVMAddressToSolana(a common.Address) solana.PublicKey {
	var key solana.PublicKey
	copy(key[12:], a[:])
	return key
}

// SolanaAddressToEVM narrows a 32-byte key to its low 20 bytes.
func SolanaAddressToEVM(a solana.PublicKey) common.Address {
	return common.BytesToAddress(a[12:])
}

// EVMToSolana is the conversion seam for swaps initiated on the EVM chain.
func EVMToSolana() bridge.Converter[common.Address, common.Hash, solana.PublicKey, solana.Hash] {
	return bridge.Converter[common.Address, common.Hash, solana.PublicKey, solana.Hash]{
		HashToCounterparty:    func(h common.Hash) solana.Hash { return solana.Hash(h) },
		HashToInitiator:       func(h solana.Hash) common.Hash { return common.Hash(h) },
		AddressToCounterparty: EVMAddressToSolana,
		AddressToInitiator:    SolanaAddressToEVM,
		AddressFromBytes: func(b []byte) solana.PublicKey {
			if len(b) == solana.PublicKeyLength {
				return solana.PublicKeyFromBytes(b)
			}
			return EVMAddressToSolana(common.BytesToAddress(b))
		},
	}
}

// SolanaToEVM is the conversion seam for swaps initiated on the Solana
// chain.
func SolanaToEVM() bridge.Converter[solana.PublicKey, solana.Hash, common.Address, common.Hash] {
	return bridge.Converter[solana.PublicKey, solana.Hash, common.Address, common.Hash]{
		HashToCounterparty:    func(h solana.Hash) common.Hash { return common.Hash(h) },
		HashToInitiator:       func(h common.Hash) solana.Hash { return solana.Hash(h) },
		AddressToCounterparty: SolanaAddressToEVM,
		AddressToInitiator:    EVMAddressToSolana,
		AddressFromBytes:      common.BytesToAddress,
	}
}
