package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/tyler-smith/go-bip39"
)

// ErrInvalidMnemonic is returned when the configured seed phrase is not a
// valid BIP-39 mnemonic.
var ErrInvalidMnemonic = errors.New("invalid BIP-39 mnemonic")

// Signer derives the coordinator's account from a BIP-39 mnemonic and
// signs and submits transactions on one EVM chain.
type Signer struct {
	wallet     *hdwallet.Wallet
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	client     *ethclient.Client
}

// NewSigner derives account accountIndex on the standard Ethereum path.
func NewSigner(mnemonic string, accountIndex int, client *ethclient.Client, chainID *big.Int) (*Signer, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	wallet, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("create hd wallet: %w", err)
	}

	path := hdwallet.MustParseDerivationPath(fmt.Sprintf("m/44'/60'/0'/0/%d", accountIndex))
	account, err := wallet.Derive(path, true)
	if err != nil {
		return nil, fmt.Errorf("derive account %d: %w", accountIndex, err)
	}

	privateKey, err := wallet.PrivateKey(account)
	if err != nil {
		return nil, fmt.Errorf("export private key: %w", err)
	}

	return &Signer{
		wallet:     wallet,
		privateKey: privateKey,
		address:    account.Address,
		chainID:    chainID,
		client:     client,
	}, nil
}

// Address returns the derived account address.
func (s *Signer) Address() common.Address {
	return s.address
}

// SendTransaction signs and submits a contract call and returns its hash.
// It returns once the node accepts the submission; finalization is
// observed through the Watcher.
func (s *Signer) SendTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From: s.address,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	return signed.Hash(), nil
}
