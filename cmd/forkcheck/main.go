// Copyright 2023 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// forkcheck inspects chain specs: their hardforks, fork ids and the state
// history kept for side chain execution.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/symphonyorg/go-symphony/core/forkid"
	"github.com/symphonyorg/go-symphony/core/state"
	"github.com/symphonyorg/go-symphony/params"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML chain spec file",
		Required: true,
	}
	blockFlag = &cli.Uint64Flag{
		Name:  "block",
		Usage: "Head block number",
	}
	timeFlag = &cli.Uint64Flag{
		Name:  "time",
		Usage: "Head block timestamp",
	}
	tdFlag = &cli.StringFlag{
		Name:  "td",
		Usage: "Head total difficulty (decimal)",
	}
	datadirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "State history directory",
		Required: true,
	}
	dbEngineFlag = &cli.StringFlag{
		Name:  "db.engine",
		Usage: "State history backend (leveldb or pebble)",
		Value: state.BackendLevelDB,
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
	nocolorFlag = &cli.BoolFlag{
		Name:  "nocolor",
		Usage: "Disable colored log output",
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log.file",
		Usage: "Write logs to a file, rotated at 100MB",
	}
)

// gitCommit is set via -ldflags "-X main.gitCommit=...".
var gitCommit = ""

var app = &cli.App{
	Name:    "forkcheck",
	Usage:   "chain spec and fork id inspector",
	Version: params.VersionWithCommit(gitCommit),
	Flags:   []cli.Flag{verbosityFlag, nocolorFlag, logFileFlag},
	Before: func(ctx *cli.Context) error {
		setupLogging(ctx)
		return nil
	},
	Commands: []*cli.Command{
		{
			Name:   "forks",
			Usage:  "List the hardforks of a chain spec",
			Flags:  []cli.Flag{configFlag},
			Action: listForks,
		},
		{
			Name:   "forkid",
			Usage:  "Compute the fork id at a head",
			Flags:  []cli.Flag{configFlag, blockFlag, timeFlag, tdFlag},
			Action: printForkID,
		},
		{
			Name:   "history",
			Usage:  "Show the state history of a data directory",
			Flags:  []cli.Flag{datadirFlag, dbEngineFlag},
			Action: showHistory,
		},
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(ctx *cli.Context) {
	var (
		output   io.Writer = os.Stderr
		useColor           = !ctx.Bool(nocolorFlag.Name) && isatty.IsTerminal(os.Stderr.Fd())
	)
	switch {
	case ctx.IsSet(logFileFlag.Name):
		output = &lumberjack.Logger{
			Filename:   ctx.String(logFileFlag.Name),
			MaxSize:    100,
			MaxBackups: 10,
		}
		useColor = false
	case useColor:
		output = colorable.NewColorableStderr()
	}
	lvl := log.Lvl(ctx.Int(verbosityFlag.Name))
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(output, log.TerminalFormat(useColor))))
}

func loadSpec(ctx *cli.Context) (*params.ChainSpec, error) {
	spec, err := params.LoadChainSpec(ctx.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	log.Debug("Loaded chain spec", "chain", spec.Chain(), "genesis", spec.GenesisHash())
	return spec, nil
}

func listForks(ctx *cli.Context) error {
	spec, err := loadSpec(ctx)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Hardfork", "Condition", "Fork ID"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, f := range spec.Forks() {
		id := "-"
		if fid, ok := forkid.HardforkID(spec, f.Fork); ok {
			id = fid.String()
		}
		table.Append([]string{f.Fork.String(), f.Condition.String(), id})
	}
	table.Render()

	fmt.Printf("chain %v, genesis %v\n", spec.Chain(), spec.GenesisHash())
	return nil
}

func printForkID(ctx *cli.Context) error {
	spec, err := loadSpec(ctx)
	if err != nil {
		return err
	}
	head := &params.Head{
		Number:    ctx.Uint64(blockFlag.Name),
		Timestamp: ctx.Uint64(timeFlag.Name),
	}
	if ctx.IsSet(tdFlag.Name) {
		td, err := uint256.FromDecimal(ctx.String(tdFlag.Name))
		if err != nil {
			return fmt.Errorf("invalid total difficulty: %w", err)
		}
		head.TotalDifficulty = td
	}
	id := forkid.NewID(spec, head)
	fmt.Printf("hash: %#x\n", id.Hash)
	if id.Next == 0 {
		fmt.Println("next: none")
	} else {
		fmt.Println("next: " + strconv.FormatUint(id.Next, 10))
	}
	return nil
}

func showHistory(ctx *cli.Context) error {
	db, err := state.OpenDatabase(ctx.String(datadirFlag.Name), ctx.String(dbEngineFlag.Name), 16, 16)
	if err != nil {
		return err
	}
	defer db.Close()

	head, ok := db.Head()
	if !ok {
		fmt.Println("history: empty")
		return nil
	}
	fmt.Printf("history head: #%d\n", head)
	return nil
}
