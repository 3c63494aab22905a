// Package chain provides read access to the PollEscrow contract on Base
// Sepolia. The chain is treated as a read-only source of truth; writes happen
// in the user's wallet, outside this service.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// escrowViewABI is the view-function subset of the PollEscrow ABI.
const escrowViewABI = `[
	{"inputs":[],"name":"getPollCounter","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"_pollId","type":"uint256"}],"name":"getPollInfo","outputs":[{"internalType":"address","name":"creator","type":"address"},{"internalType":"uint256","name":"rewardPool","type":"uint256"},{"internalType":"uint256","name":"rewardPerUser","type":"uint256"},{"internalType":"uint256","name":"completedCount","type":"uint256"},{"internalType":"uint256","name":"maxCompletions","type":"uint256"},{"internalType":"bool","name":"isActive","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"_pollId","type":"uint256"},{"internalType":"bytes32","name":"_nullifierHash","type":"bytes32"}],"name":"isNullifierHashUsed","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"PLATFORM_FEE_BPS","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Config holds client configuration.
type Config struct {
	RPCURL          string
	ContractAddress string
	Timeout         time.Duration
}

// PollInfo is the on-chain state tuple returned by getPollInfo.
type PollInfo struct {
	Creator        common.Address
	RewardPool     *big.Int
	RewardPerUser  *big.Int
	CompletedCount *big.Int
	MaxCompletions *big.Int
	IsActive       bool
}

// Client reads PollEscrow view functions over JSON-RPC.
type Client struct {
	eth      *ethclient.Client
	abi      abi.ABI
	contract common.Address
	timeout  time.Duration
}

// NewClient dials the RPC endpoint and prepares the contract ABI.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	parsed, err := abi.JSON(strings.NewReader(escrowViewABI))
	if err != nil {
		return nil, fmt.Errorf("parse escrow ABI: %w", err)
	}

	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}

	return &Client{
		eth:      eth,
		abi:      parsed,
		contract: common.HexToAddress(cfg.ContractAddress),
		timeout:  timeout,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// ContractAddress returns the configured escrow address.
func (c *Client) ContractAddress() string {
	return c.contract.Hex()
}

// PollCounter returns the number of polls ever created.
func (c *Client) PollCounter(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, "getPollCounter")
	if err != nil {
		return 0, err
	}
	counter, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("getPollCounter: unexpected output %T", out[0])
	}
	return counter.Uint64(), nil
}

// PollInfo returns the state tuple for one poll id.
func (c *Client) PollInfo(ctx context.Context, pollID uint64) (PollInfo, error) {
	out, err := c.call(ctx, "getPollInfo", new(big.Int).SetUint64(pollID))
	if err != nil {
		return PollInfo{}, err
	}
	if len(out) != 6 {
		return PollInfo{}, fmt.Errorf("getPollInfo: expected 6 outputs, got %d", len(out))
	}

	info := PollInfo{}
	var ok bool
	if info.Creator, ok = out[0].(common.Address); !ok {
		return PollInfo{}, fmt.Errorf("getPollInfo: unexpected creator type %T", out[0])
	}
	if info.RewardPool, ok = out[1].(*big.Int); !ok {
		return PollInfo{}, fmt.Errorf("getPollInfo: unexpected rewardPool type %T", out[1])
	}
	if info.RewardPerUser, ok = out[2].(*big.Int); !ok {
		return PollInfo{}, fmt.Errorf("getPollInfo: unexpected rewardPerUser type %T", out[2])
	}
	if info.CompletedCount, ok = out[3].(*big.Int); !ok {
		return PollInfo{}, fmt.Errorf("getPollInfo: unexpected completedCount type %T", out[3])
	}
	if info.MaxCompletions, ok = out[4].(*big.Int); !ok {
		return PollInfo{}, fmt.Errorf("getPollInfo: unexpected maxCompletions type %T", out[4])
	}
	if info.IsActive, ok = out[5].(bool); !ok {
		return PollInfo{}, fmt.Errorf("getPollInfo: unexpected isActive type %T", out[5])
	}
	return info, nil
}

// NullifierUsed reports whether a nullifier hash was already spent for a poll.
func (c *Client) NullifierUsed(ctx context.Context, pollID uint64, nullifierHash string) (bool, error) {
	hash := [32]byte(common.HexToHash(nullifierHash))
	out, err := c.call(ctx, "isNullifierHashUsed", new(big.Int).SetUint64(pollID), hash)
	if err != nil {
		return false, err
	}
	used, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("isNullifierHashUsed: unexpected output %T", out[0])
	}
	return used, nil
}

// PlatformFeeBPS returns the platform fee rate in basis points.
func (c *Client) PlatformFeeBPS(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, "PLATFORM_FEE_BPS")
	if err != nil {
		return 0, err
	}
	bps, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("PLATFORM_FEE_BPS: unexpected output %T", out[0])
	}
	return bps.Uint64(), nil
}

// call packs, executes and unpacks one eth_call against the escrow contract.
func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.eth.CallContract(callCtx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}
	return out, nil
}
