package node

import (
	"fmt"
	"net/rpc"

	"github.com/witnesslabs/blockstats/common"
	"github.com/witnesslabs/blockstats/types"
)

// Client talks to a chain RPC server. Methods taking a *common.Hash treat
// nil as the current best block.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the chain service at addr.
func Dial(addr string) (*Client, error) {
	c, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{rpc: c}, nil
}

func (c *Client) Close() error {
	return c.rpc.Close()
}

// GetBlock fetches a block.
func (c *Client) GetBlock(hash *common.Hash) (*types.Block, bool, error) {
	var reply BlockReply
	if err := c.rpc.Call(ServiceName+".GetBlock", &HashArgs{Hash: hash}, &reply); err != nil {
		return nil, false, err
	}
	if !reply.Found {
		return nil, false, nil
	}
	return &reply.Block, true, nil
}

// GetHeader fetches a header.
func (c *Client) GetHeader(hash *common.Hash) (*types.Header, bool, error) {
	var reply HeaderReply
	if err := c.rpc.Call(ServiceName+".GetHeader", &HashArgs{Hash: hash}, &reply); err != nil {
		return nil, false, err
	}
	if !reply.Found {
		return nil, false, nil
	}
	return &reply.Header, true, nil
}

// BestBlock fetches the hash of the current best block.
func (c *Client) BestBlock() (common.Hash, bool, error) {
	var reply BestBlockReply
	if err := c.rpc.Call(ServiceName+".BestBlock", &struct{}{}, &reply); err != nil {
		return common.Hash{}, false, err
	}
	return reply.Hash, reply.Found, nil
}

// Parent fetches the header of a block's parent.
func (c *Client) Parent(hash *common.Hash) (*types.Header, bool, error) {
	var reply HeaderReply
	if err := c.rpc.Call(ServiceName+".Parent", &HashArgs{Hash: hash}, &reply); err != nil {
		return nil, false, err
	}
	if !reply.Found {
		return nil, false, nil
	}
	return &reply.Header, true, nil
}

// BlockStats fetches witness measurements for a block. Found is false when
// the block or its parent is unknown.
func (c *Client) BlockStats(hash *common.Hash) (*types.BlockStats, bool, error) {
	var reply BlockStatsReply
	if err := c.rpc.Call(ServiceName+".BlockStats", &HashArgs{Hash: hash}, &reply); err != nil {
		return nil, false, err
	}
	if !reply.Found {
		return nil, false, nil
	}
	return &reply.Stats, true, nil
}
