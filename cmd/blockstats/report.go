package main

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/witnesslabs/blockstats/common"
	"github.com/witnesslabs/blockstats/log"
	"github.com/witnesslabs/blockstats/node"
	"github.com/witnesslabs/blockstats/statedb"
	"github.com/witnesslabs/blockstats/types"
)

func reportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render an HTML chart of witness sizes along the best chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := node.Dial(flagAddr)
			if err != nil {
				return err
			}
			defer client.Close()
			return renderReport(client, flagOut)
		},
	}
	cmd.Flags().StringVar(&flagOut, "out", "blockstats.html", "output HTML file")
	return cmd
}

type blockPoint struct {
	slot  uint32
	stats types.BlockStats
}

// collectChain walks headers back from best and gathers stats for every block
// that has them.
func collectChain(client *node.Client) ([]blockPoint, error) {
	hash, found, err := client.BestBlock()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("chain has no blocks")
	}

	var points []blockPoint
	for {
		header, found, err := client.GetHeader(&hash)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		bs, found, err := client.BlockStats(&hash)
		if err != nil {
			return nil, err
		}
		if found {
			points = append(points, blockPoint{slot: header.Slot, stats: *bs})
		}
		if header.IsGenesis() {
			break
		}
		hash = header.ParentHash
	}

	// walked tip-first, flip to ascending slots
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

func renderReport(client *node.Client, outPath string) error {
	points, err := collectChain(client)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("no blocks with stats on the best chain")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Block witness sizes",
			Subtitle: "bytes per slot along the best chain",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	var (
		xAxis      []string
		witness    []opts.LineData
		compact    []opts.LineData
		compressed []opts.LineData
		blockLen   []opts.LineData
	)
	for _, p := range points {
		xAxis = append(xAxis, fmt.Sprintf("%d", p.slot))
		witness = append(witness, opts.LineData{Value: p.stats.WitnessLen})
		compact = append(compact, opts.LineData{Value: p.stats.WitnessCompactLen})
		compressed = append(compressed, opts.LineData{Value: p.stats.WitnessCompressedLen})
		blockLen = append(blockLen, opts.LineData{Value: p.stats.BlockLen})
	}

	line.SetXAxis(xAxis).
		AddSeries("witness", witness).
		AddSeries("compact", compact).
		AddSeries("compressed", compressed).
		AddSeries("block", blockLen)

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		return err
	}
	log.Info(log.ModuleCLI, "report written", "path", outPath, "blocks", len(points))
	return nil
}

func dumpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print a block as a tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := node.Dial(flagAddr)
			if err != nil {
				return err
			}
			defer client.Close()

			block, found, err := client.GetBlock(resolveHash(flagHash))
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("block %s not found", flagHash)
			}
			fmt.Print(formatBlockTree(block))
			return nil
		},
	}
	cmd.Flags().StringVar(&flagHash, "hash", "best", "block hash, or 'best'")
	return cmd
}

func formatBlockTree(block *types.Block) string {
	tree := treeprint.NewWithRoot(fmt.Sprintf("block %s", block.Hash().Hex()))

	header := tree.AddBranch("header")
	header.AddNode(fmt.Sprintf("parent: %s", block.Header.ParentHash.Hex()))
	header.AddNode(fmt.Sprintf("parent_state_root: %s", block.Header.ParentStateRoot.Hex()))
	header.AddNode(fmt.Sprintf("extrinsic_hash: %s", block.Header.ExtrinsicHash.Hex()))
	header.AddNode(fmt.Sprintf("slot: %d", block.Header.Slot))
	header.AddNode(fmt.Sprintf("author: %d", block.Header.AuthorIndex))

	xts := tree.AddBranch(fmt.Sprintf("extrinsics (%d)", block.Extrinsic.Count()))
	for i, xt := range block.Extrinsic.Extrinsics {
		ops, err := statedb.DecodeOps(xt)
		if err != nil {
			xts.AddNode(fmt.Sprintf("%d: undecodable (%d bytes)", i, len(xt)))
			continue
		}
		for _, op := range ops {
			xts.AddNode(fmt.Sprintf("%d: %s", i, formatOp(&op)))
		}
	}
	return tree.String()
}

func formatOp(op *statedb.StateOp) string {
	switch op.Kind {
	case statedb.OpSet:
		return fmt.Sprintf("set %s = %d bytes", common.Str(op.Key), len(op.Value))
	case statedb.OpDelete:
		return fmt.Sprintf("delete %s", common.Str(op.Key))
	case statedb.OpTransfer:
		return fmt.Sprintf("transfer %s -> %s amount %s", op.From.Hex(), op.To.Hex(), op.AmountInt())
	default:
		return fmt.Sprintf("unknown kind %d", op.Kind)
	}
}
