// Package node exposes the chain and the stats computer over net/rpc.
package node

import (
	"context"
	"fmt"
	"net"
	"net/rpc"

	"github.com/witnesslabs/blockstats/common"
	"github.com/witnesslabs/blockstats/log"
	"github.com/witnesslabs/blockstats/statedb"
	"github.com/witnesslabs/blockstats/stats"
	"github.com/witnesslabs/blockstats/types"
)

// ServiceName is the RPC namespace the chain service registers under.
const ServiceName = "chain"

// ChainService answers block, header and stats queries.
type ChainService struct {
	chain    *statedb.Chain
	computer *stats.Computer
}

// NewChainService wires the RPC surface over a chain and its stats computer.
func NewChainService(chain *statedb.Chain, computer *stats.Computer) *ChainService {
	return &ChainService{chain: chain, computer: computer}
}

// HashArgs names a block. A nil Hash means the current best block.
type HashArgs struct {
	Hash *common.Hash
}

type BlockReply struct {
	Found bool
	Block types.Block
}

type HeaderReply struct {
	Found  bool
	Header types.Header
}

type BestBlockReply struct {
	Found bool
	Hash  common.Hash
}

type BlockStatsReply struct {
	Found bool
	Stats types.BlockStats
}

// resolveID unwraps an optional block hash, falling back to the best block.
func (s *ChainService) resolveID(id *common.Hash) (common.Hash, error) {
	if id != nil {
		return *id, nil
	}
	return s.chain.Store().ResolveBest()
}

// GetBlock returns the block with the given hash, or the best block when the
// hash is nil.
func (s *ChainService) GetBlock(args *HashArgs, reply *BlockReply) error {
	hash, err := s.resolveID(args.Hash)
	if err != nil {
		return err
	}
	b, found, err := s.chain.Store().GetBlock(hash)
	if err != nil {
		return err
	}
	reply.Found = found
	if found {
		reply.Block = *b
	}
	return nil
}

// GetHeader returns the header with the given hash, or the best header when
// the hash is nil.
func (s *ChainService) GetHeader(args *HashArgs, reply *HeaderReply) error {
	hash, err := s.resolveID(args.Hash)
	if err != nil {
		return err
	}
	h, found, err := s.chain.Store().GetHeader(hash)
	if err != nil {
		return err
	}
	reply.Found = found
	if found {
		reply.Header = *h
	}
	return nil
}

// BestBlock returns the hash the best pointer names.
func (s *ChainService) BestBlock(_ *struct{}, reply *BestBlockReply) error {
	hash, found, err := s.chain.Store().GetBestBlockHash()
	if err != nil {
		return err
	}
	reply.Found = found
	reply.Hash = hash
	return nil
}

// Parent returns the header of the parent of the given block.
func (s *ChainService) Parent(args *HashArgs, reply *HeaderReply) error {
	hash, err := s.resolveID(args.Hash)
	if err != nil {
		return err
	}
	h, found, err := s.chain.Store().GetHeader(hash)
	if err != nil {
		return err
	}
	if !found || h.IsGenesis() {
		reply.Found = false
		return nil
	}
	return s.GetHeader(&HashArgs{Hash: &h.ParentHash}, reply)
}

// BlockStats re-executes the block and returns its witness measurements. A
// nil hash means the best block. Found is false when the block or its parent
// is not in the ledger.
func (s *ChainService) BlockStats(args *HashArgs, reply *BlockStatsReply) error {
	bs, err := s.computer.ComputeStats(context.Background(), args.Hash)
	if err != nil {
		return err
	}
	if bs == nil {
		reply.Found = false
		return nil
	}
	reply.Found = true
	reply.Stats = *bs
	return nil
}

// Server serves the chain service on a TCP listener.
type Server struct {
	listener net.Listener
	rpcSrv   *rpc.Server
}

// NewServer registers svc and starts accepting connections on addr. Use port
// 0 to pick a free port.
func NewServer(addr string, svc *ChainService) (*Server, error) {
	rpcSrv := rpc.NewServer()
	if err := rpcSrv.RegisterName(ServiceName, svc); err != nil {
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	s := &Server{listener: listener, rpcSrv: rpcSrv}
	go s.acceptLoop()
	log.Info(log.ModuleNode, "rpc server listening", "addr", listener.Addr().String())
	return s, nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.rpcSrv.ServeConn(conn)
	}
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close stops accepting connections.
func (s *Server) Close() error {
	return s.listener.Close()
}
