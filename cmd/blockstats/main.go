// blockstats runs a demo chain node, queries witness statistics over RPC and
// renders reports.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/witnesslabs/blockstats/common"
	"github.com/witnesslabs/blockstats/compress"
	"github.com/witnesslabs/blockstats/log"
	"github.com/witnesslabs/blockstats/node"
	"github.com/witnesslabs/blockstats/statedb"
	"github.com/witnesslabs/blockstats/stats"
	"github.com/witnesslabs/blockstats/storage"
	"github.com/witnesslabs/blockstats/types"
)

const version = "0.1.0"

// decompression guard for RPC payloads
const maxDecompressedSize = 1 << 30

var (
	flagAddr     string
	flagDataDir  string
	flagBlocks   int
	flagLogLevel string
	flagLogMods  string
	flagOTLP     string
	flagHash     string
	flagOut      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blockstats",
		Short: "Block execution witness statistics",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.InitLogger(flagLogLevel, flagLogMods)
		},
	}
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log.level", "info", "log level (trace|debug|info|warn|error|crit)")
	rootCmd.PersistentFlags().StringVar(&flagLogMods, "log.modules", "", "comma separated log modules, empty for all")
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "127.0.0.1:8600", "rpc address")

	rootCmd.AddCommand(runCommand())
	rootCmd.AddCommand(statsCommand())
	rootCmd.AddCommand(reportCommand())
	rootCmd.AddCommand(dumpCommand())
	rootCmd.AddCommand(versionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a node with a generated demo chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if flagOTLP != "" {
				shutdown, err := setupTracing(ctx, flagOTLP)
				if err != nil {
					return err
				}
				defer shutdown(context.Background())
			}

			var db storage.KVStore
			var err error
			if flagDataDir != "" {
				db, err = storage.NewLevelDBStore(flagDataDir)
				if err != nil {
					return err
				}
			} else {
				db = storage.NewMemoryStore()
			}
			store := storage.NewChainStore(db)
			defer store.Close()

			chain := statedb.NewChain(store)
			if err := buildDemoChain(ctx, chain, flagBlocks); err != nil {
				return err
			}

			computer := stats.NewComputer(store, chain.Executor(), compress.NewZstdCompressor(maxDecompressedSize))
			srv, err := node.NewServer(flagAddr, node.NewChainService(chain, computer))
			if err != nil {
				return err
			}
			defer srv.Close()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			log.Info(log.ModuleCLI, "shutting down")
			return nil
		},
	}
	cmd.Flags().StringVar(&flagDataDir, "datadir", "", "leveldb directory, empty for in-memory")
	cmd.Flags().IntVar(&flagBlocks, "blocks", 16, "number of demo blocks to generate")
	cmd.Flags().StringVar(&flagOTLP, "otlp.endpoint", "", "OTLP/HTTP trace endpoint, empty to disable")
	return cmd
}

func statsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print witness statistics for a block",
		RunE: func(cmd *cobra.Command, args []string) error {
			bs, found, err := fetchStats(cmd.Context(), resolveHash(flagHash))
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("null")
				return nil
			}
			out, err := json.MarshalIndent(bs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&flagHash, "hash", "best", "block hash, or 'best'")
	cmd.Flags().StringVar(&flagDataDir, "datadir", "", "compute directly from a leveldb directory instead of querying a node")
	return cmd
}

// fetchStats computes stats directly from a datadir when one is given,
// otherwise it queries the node over RPC.
func fetchStats(ctx context.Context, id *common.Hash) (*types.BlockStats, bool, error) {
	if flagDataDir == "" {
		client, err := node.Dial(flagAddr)
		if err != nil {
			return nil, false, err
		}
		defer client.Close()
		return client.BlockStats(id)
	}

	db, err := storage.NewLevelDBStore(flagDataDir)
	if err != nil {
		return nil, false, err
	}
	store := storage.NewChainStore(db)
	defer store.Close()

	computer := stats.NewComputer(store, statedb.NewExecutor(store), compress.NewZstdCompressor(maxDecompressedSize))
	bs, err := computer.ComputeStats(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return bs, bs != nil, nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and commit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("blockstats %s (commit %s)\n", version, common.GetCommitHash())
		},
	}
}

// resolveHash turns a hex hash into a block identifier; "best" (or empty)
// means the current best block, expressed as a nil hash.
func resolveHash(s string) *common.Hash {
	if s == "" || s == "best" {
		return nil
	}
	h := common.HexToHash(s)
	return &h
}

// buildDemoChain seeds a genesis and appends blocks with generated traffic.
func buildDemoChain(ctx context.Context, chain *statedb.Chain, blocks int) error {
	alice := common.BytesToAddress([]byte("alice"))
	bob := common.BytesToAddress([]byte("bob"))
	carol := common.BytesToAddress([]byte("carol"))
	accounts := []common.Address{alice, bob, carol}

	if _, err := chain.InitGenesis(map[common.Address]*uint256.Int{
		alice: uint256.NewInt(1_000_000),
		bob:   uint256.NewInt(1_000_000),
		carol: uint256.NewInt(1_000_000),
	}); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < blocks; i++ {
		var ops []statedb.StateOp
		for j := 0; j < 1+rng.Intn(8); j++ {
			switch rng.Intn(3) {
			case 0:
				key := common.Blake2Hash([]byte(fmt.Sprintf("kv-%d", rng.Intn(64))))
				ops = append(ops, statedb.NewSetOp(key, []byte(fmt.Sprintf("value-%d", rng.Int63()))))
			case 1:
				key := common.Blake2Hash([]byte(fmt.Sprintf("kv-%d", rng.Intn(64))))
				ops = append(ops, statedb.NewDeleteOp(key))
			default:
				from := accounts[rng.Intn(len(accounts))]
				to := accounts[rng.Intn(len(accounts))]
				ops = append(ops, statedb.NewTransferOp(from, to, uint256.NewInt(uint64(1+rng.Intn(100)))))
			}
		}
		if _, err := chain.AddBlock(ctx, ops); err != nil {
			return err
		}
	}
	log.Info(log.ModuleCLI, "demo chain ready", "blocks", blocks)
	return nil
}

func setupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(sdkresource.NewSchemaless(
			attribute.String("service.name", "blockstats"),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(tp)
	log.Info(log.ModuleCLI, "tracing enabled", "endpoint", endpoint)
	return tp.Shutdown, nil
}
