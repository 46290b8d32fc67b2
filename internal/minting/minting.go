// Package minting submits mintNFT transactions to the agent NFT contract.
package minting

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	// DefaultRPCURL is the JSON-RPC endpoint of the network the contract lives on.
	DefaultRPCURL = "https://rpc.mantle.xyz"
	// DefaultContractAddress is the deployed agent NFT contract.
	DefaultContractAddress = "0x3a18694852924178f20b61d18b0195c2db1e4c00"
	// DefaultExplorerURL is used to build transaction links.
	DefaultExplorerURL = "https://explorer.mantle.xyz"
	// DefaultConfirmTimeout bounds the wait for block inclusion.
	DefaultConfirmTimeout = 5 * time.Minute

	mintMethod = "mintNFT"
)

// mintABI declares the single contract method the bot calls.
const mintABI = `[{"inputs":[{"internalType":"address","name":"recipient","type":"address"},{"internalType":"string","name":"tokenURI","type":"string"}],"name":"mintNFT","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"payable","type":"function"}]`

// ErrTransactionFailed is returned when the mint transaction is mined but reverted.
var ErrTransactionFailed = errors.New("mint transaction reverted")

// Minter mints an NFT for a wallet and returns the confirmed transaction hash.
type Minter interface {
	MintNFT(ctx context.Context, walletAddress, metadataURL string) (string, error)
}

// chainBackend is what the minter needs from an RPC connection.
type chainBackend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Dialer opens a chain connection for an RPC URL.
type Dialer func(ctx context.Context, rpcURL string) (chainBackend, error)

func dialEthClient(ctx context.Context, rpcURL string) (chainBackend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// IsValidAddress reports whether s is a syntactically valid hex account address.
func IsValidAddress(s string) bool {
	return common.IsHexAddress(strings.TrimSpace(s))
}

// Opts holds configuration options for the minting client.
type Opts struct {
	RPCURL          string
	PrivateKey      string
	ContractAddress string
	ConfirmTimeout  time.Duration
	Dialer          Dialer
}

// Option defines a configuration option for the minting client.
type Option func(*Opts)

// WithRPCURL sets the blockchain RPC endpoint.
func WithRPCURL(url string) Option {
	return func(o *Opts) { o.RPCURL = url }
}

// WithPrivateKey sets the hex-encoded signing key.
func WithPrivateKey(key string) Option {
	return func(o *Opts) { o.PrivateKey = key }
}

// WithContractAddress overrides the NFT contract address.
func WithContractAddress(addr string) Option {
	return func(o *Opts) { o.ContractAddress = addr }
}

// WithConfirmTimeout bounds how long MintNFT waits for the receipt.
func WithConfirmTimeout(d time.Duration) Option {
	return func(o *Opts) { o.ConfirmTimeout = d }
}

func withDialer(d Dialer) Option {
	return func(o *Opts) { o.Dialer = d }
}

// Client signs and submits mint transactions.
type Client struct {
	rpcURL         string
	key            *ecdsa.PrivateKey
	from           common.Address
	contract       common.Address
	abi            abi.ABI
	confirmTimeout time.Duration
	dial           Dialer
}

// NewClient parses the signing key and contract ABI. The private key falls
// back to MAINNET_PRIVATE_KEY.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		RPCURL:          DefaultRPCURL,
		ContractAddress: DefaultContractAddress,
		ConfirmTimeout:  DefaultConfirmTimeout,
		Dialer:          dialEthClient,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.PrivateKey == "" {
		cfg.PrivateKey = os.Getenv("MAINNET_PRIVATE_KEY")
	}
	slog.Debug("Minting client config loaded", "rpc_url", cfg.RPCURL, "contract", cfg.ContractAddress, "PrivateKey_set", cfg.PrivateKey != "")

	keyHex := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x")
	if keyHex == "" {
		return nil, fmt.Errorf("MAINNET_PRIVATE_KEY not set")
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	parsed, err := abi.JSON(strings.NewReader(mintABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	return &Client{
		rpcURL:         cfg.RPCURL,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		contract:       common.HexToAddress(cfg.ContractAddress),
		abi:            parsed,
		confirmTimeout: cfg.ConfirmTimeout,
		dial:           cfg.Dialer,
	}, nil
}

// SignerAddress returns the account that pays for mint transactions.
func (c *Client) SignerAddress() common.Address {
	return c.from
}

// MintNFT calls mintNFT(walletAddress, metadataURL) with zero value and waits
// for the transaction to be mined.
func (c *Client) MintNFT(ctx context.Context, walletAddress, metadataURL string) (string, error) {
	slog.Info("MintingClient MintNFT starting", "wallet", walletAddress, "contract", c.contract.Hex())

	backend, err := c.dial(ctx, c.rpcURL)
	if err != nil {
		slog.Error("MintingClient MintNFT dial failed", "error", err, "rpc_url", c.rpcURL)
		return "", fmt.Errorf("failed to connect to rpc: %w", err)
	}
	if closer, ok := backend.(interface{ Close() }); ok {
		defer closer.Close()
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		slog.Error("MintingClient MintNFT chain id lookup failed", "error", err)
		return "", fmt.Errorf("failed to read chain id: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(c.key, chainID)
	if err != nil {
		return "", fmt.Errorf("failed to build signer: %w", err)
	}
	auth.Context = ctx
	auth.Value = big.NewInt(0)

	contract := bind.NewBoundContract(c.contract, c.abi, backend, backend, backend)
	tx, err := contract.Transact(auth, mintMethod, common.HexToAddress(walletAddress), metadataURL)
	if err != nil {
		slog.Error("MintingClient MintNFT submit failed", "error", err, "wallet", walletAddress)
		return "", fmt.Errorf("failed to submit mint transaction: %w", err)
	}
	slog.Info("MintingClient MintNFT submitted", "tx_hash", tx.Hash().Hex(), "chain_id", chainID)

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, backend, tx)
	if err != nil {
		slog.Error("MintingClient MintNFT confirmation failed", "error", err, "tx_hash", tx.Hash().Hex())
		return "", fmt.Errorf("failed waiting for mint confirmation: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		slog.Error("MintingClient MintNFT reverted", "tx_hash", tx.Hash().Hex(), "block", receipt.BlockNumber)
		return "", fmt.Errorf("%w: %s", ErrTransactionFailed, tx.Hash().Hex())
	}

	slog.Info("MintingClient MintNFT confirmed", "tx_hash", tx.Hash().Hex(), "block", receipt.BlockNumber, "gas_used", receipt.GasUsed)
	return tx.Hash().Hex(), nil
}

// TxURL builds an explorer link for a transaction hash.
func TxURL(explorerURL, txHash string) string {
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(explorerURL, "/"), txHash)
}
