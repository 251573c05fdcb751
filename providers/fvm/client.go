// Package fvm interacts with the provenance and payment contracts on an
// FVM (Filecoin EVM) chain: asset registration, provenance queries and
// payment-transaction inspection.
package fvm

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"decen-ai-backend/core/payment"
)

const registerGasLimit = 2_000_000

// ErrAssetNotFound is returned when no provenance record exists for a
// queried CID.
var ErrAssetNotFound = errors.New("no asset registered for this CID")

// Asset is a provenance record read from the registry contract.
type Asset struct {
	Owner        string
	AssetType    string
	Name         string
	PrimaryCID   string
	MetadataCID  string
	SourceCID    string
	RegisteredAt time.Time
}

// Client talks to the FVM chain. The backend wallet signs registration
// transactions; queries and payment inspection work without it.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int

	key  *ecdsa.PrivateKey
	from common.Address

	registry common.Address
	payments common.Address

	registryABI abi.ABI
	paymentABI  abi.ABI

	confirmTimeout time.Duration
}

// NewClient dials the RPC endpoint and prepares the contract bindings.
// privateKeyHex may be empty; registration then fails with a clear
// error while reads keep working.
func NewClient(ctx context.Context, rpcURL, privateKeyHex, registryAddr, paymentAddr string, confirmTimeout time.Duration) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to FVM RPC %s: %w", rpcURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain ID: %w", err)
	}

	registryABI, err := abi.JSON(strings.NewReader(registryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("bad registry ABI: %w", err)
	}
	paymentABI, err := abi.JSON(strings.NewReader(paymentABIJSON))
	if err != nil {
		return nil, fmt.Errorf("bad payment ABI: %w", err)
	}

	c := &Client{
		eth:            eth,
		chainID:        chainID,
		registry:       common.HexToAddress(registryAddr),
		payments:       common.HexToAddress(paymentAddr),
		registryABI:    registryABI,
		paymentABI:     paymentABI,
		confirmTimeout: confirmTimeout,
	}

	if privateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid backend wallet key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
		log.Printf("Backend wallet loaded: %s", c.from.Hex())
	} else {
		log.Println("No backend wallet key configured; provenance registration disabled")
	}

	return c, nil
}

// RegisterAsset submits a registerAsset transaction and waits, within
// the confirmation timeout, for it to be mined. Returns the transaction
// hash on success.
func (c *Client) RegisterAsset(ctx context.Context, owner, assetType, name, primaryCID, metadataCID, sourceCID string) (string, error) {
	if c.key == nil {
		return "", fmt.Errorf("backend wallet not configured, cannot sign transactions")
	}

	data, err := c.registryABI.Pack("registerAsset",
		common.HexToAddress(owner), assetType, name, primaryCID, metadataCID, sourceCID)
	if err != nil {
		return "", fmt.Errorf("failed to encode registerAsset call: %w", err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("failed to fetch account nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, c.registry, big.NewInt(0), registerGasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	txHash := signed.Hash().Hex()
	log.Printf("registerAsset transaction sent: %s", txHash)

	// Bounded confirmation wait: an unconfirmed chain must not hang the
	// publish request.
	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.eth, signed)
	if err != nil {
		return "", fmt.Errorf("transaction %s not confirmed in %s: %w", txHash, c.confirmTimeout, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("transaction %s reverted", txHash)
	}
	return txHash, nil
}

// AssetByCID reads the provenance record any of whose CIDs equals cid.
func (c *Client) AssetByCID(ctx context.Context, cid string) (*Asset, error) {
	data, err := c.registryABI.Pack("getAssetByCid", cid)
	if err != nil {
		return nil, fmt.Errorf("failed to encode getAssetByCid call: %w", err)
	}

	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.registry, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("getAssetByCid call failed: %w", err)
	}

	vals, err := c.registryABI.Unpack("getAssetByCid", raw)
	if err != nil || len(vals) != 7 {
		return nil, fmt.Errorf("getAssetByCid returned unexpected data: %w", err)
	}

	owner, _ := vals[0].(common.Address)
	registeredAt, _ := vals[6].(*big.Int)
	asset := &Asset{
		Owner:       owner.Hex(),
		AssetType:   vals[1].(string),
		Name:        vals[2].(string),
		PrimaryCID:  vals[3].(string),
		MetadataCID: vals[4].(string),
		SourceCID:   vals[5].(string),
	}
	if registeredAt != nil {
		asset.RegisteredAt = time.Unix(registeredAt.Int64(), 0).UTC()
	}
	if asset.PrimaryCID == "" {
		return nil, fmt.Errorf("CID %s: %w", cid, ErrAssetNotFound)
	}
	return asset, nil
}

// AssetsByOwner lists the provenance records registered to owner.
func (c *Client) AssetsByOwner(ctx context.Context, owner string) ([]*Asset, error) {
	data, err := c.registryABI.Pack("getAssetsByOwner", common.HexToAddress(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to encode getAssetsByOwner call: %w", err)
	}

	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.registry, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("getAssetsByOwner call failed: %w", err)
	}

	vals, err := c.registryABI.Unpack("getAssetsByOwner", raw)
	if err != nil || len(vals) != 1 {
		return nil, fmt.Errorf("getAssetsByOwner returned unexpected data: %w", err)
	}
	cids, _ := vals[0].([]string)

	assets := make([]*Asset, 0, len(cids))
	for _, cid := range cids {
		asset, err := c.AssetByCID(ctx, cid)
		if err != nil {
			log.Printf("fvm: skipping asset %s for owner %s: %v", cid, owner, err)
			continue
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

// PaymentByTx decodes a payForService transaction so the payment
// verifier can check it. Implements payment.TxReader.
func (c *Client) PaymentByTx(ctx context.Context, txHash string) (*payment.Payment, error) {
	hash := common.HexToHash(txHash)

	tx, isPending, err := c.eth.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("transaction %s not found: %w", txHash, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()
	var receipt *types.Receipt
	if isPending {
		receipt, err = bind.WaitMined(waitCtx, c.eth, tx)
	} else {
		receipt, err = c.eth.TransactionReceipt(waitCtx, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("transaction %s not confirmed: %w", txHash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s reverted", txHash)
	}

	if tx.To() == nil || *tx.To() != c.payments {
		return nil, fmt.Errorf("transaction %s is not addressed to the payment contract", txHash)
	}

	method := c.paymentABI.Methods["payForService"]
	input := tx.Data()
	if len(input) < 4 || !bytes.Equal(input[:4], method.ID) {
		return nil, fmt.Errorf("transaction %s does not call payForService", txHash)
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil || len(args) != 2 {
		return nil, fmt.Errorf("transaction %s has malformed payForService arguments: %w", txHash, err)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("could not recover sender of %s: %w", txHash, err)
	}

	return &payment.Payment{
		Payer:   sender.Hex(),
		Amount:  tx.Value(),
		Service: args[0].(string),
		Nonce:   args[1].(string),
	}, nil
}
