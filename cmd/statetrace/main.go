// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/inconshreveable/log15"
	isatty "github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"
)

var (
	version   = "0.1.0"
	gitCommit string

	log = log15.New("pkg", "main")
)

func fullVersion() string {
	if gitCommit == "" {
		return version
	}
	return version + "-" + gitCommit
}

func main() {
	app := cli.App{
		Version: fullVersion(),
		Name:    "statetrace",
		Usage:   "replay blocks against captured storage snapshots and trace their execution",
		Flags: []cli.Flag{
			configFlag,
			dataDirFlag,
			verbosityFlag,
			traceLevelFlag,
			traceDBFlag,
			cacheSizeFlag,
		},
		Before: func(ctx *cli.Context) error {
			initLogger(os.Stderr, ctx.GlobalInt(verbosityFlag.Name))
			return nil
		},
		Commands: []cli.Command{
			{
				Name:   "init",
				Usage:  "create a chain in the data dir from a genesis",
				Flags:  []cli.Flag{genesisFlag},
				Action: initAction,
			},
			{
				Name:   "import",
				Usage:  "execute blocks from a JSON file, capturing the snapshot of each",
				Flags:  []cli.Flag{blocksFlag, captureDirFlag},
				Action: importAction,
			},
			{
				Name:      "inspect",
				Usage:     "decode a snapshot file and print a summary",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{dumpFlag},
				Action:    inspectAction,
			},
			{
				Name:  "replay",
				Usage: "replay one block against a snapshot and compare reads",
				Flags: []cli.Flag{
					blockFlag,
					hashFlag,
					snapshotFlag,
					remoteFlag,
					apiKeyFlag,
					pageSizeFlag,
					timeoutFlag,
					fromTraceDBFlag,
					diffFlag,
					strictFlag,
				},
				Action: replayAction,
			},
			{
				Name:   "replay-range",
				Usage:  "replay a range of blocks against <index>.bin snapshots",
				Flags:  []cli.Flag{fromFlag, toFlag, snapshotDirFlag, workersFlag, strictFlag},
				Action: replayRangeAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Fatal:", err.Error())
		os.Exit(1)
	}
}

// initLogger installs the root handler: terminal format on a tty, logfmt
// otherwise.
func initLogger(w io.Writer, verbosity int) {
	format := log15.LogfmtFormat()
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		format = log15.TerminalFormat()
	}
	log15.Root().SetHandler(log15.LvlFilterHandler(log15.Lvl(verbosity), log15.StreamHandler(w, format)))
}
