// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"time"

	"github.com/inconshreveable/log15"
	"github.com/miniBamboo/statetrace/replay"
	"github.com/miniBamboo/statetrace/snapshot"
	cli "gopkg.in/urfave/cli.v1"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a YAML config file",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for chain data",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: int(log15.LvlInfo),
		Usage: "log verbosity (0-5)",
	}
	traceLevelFlag = cli.StringFlag{
		Name:  "trace-level",
		Value: "none",
		Usage: "trace categories to record: none, all, or names joined by '|' (syscalls, storage, notifications, calls, opcodes)",
	}
	traceDBFlag = cli.StringFlag{
		Name:  "trace-db",
		Usage: "SQLite database of captured runs",
	}
	cacheSizeFlag = cli.IntFlag{
		Name:  "cache-size",
		Value: replay.DefaultCacheSize,
		Usage: "entries of the read cache built over each replayed snapshot",
	}

	genesisFlag = cli.StringFlag{
		Name:  "genesis",
		Usage: "custom genesis JSON file, devnet when omitted",
	}
	blocksFlag = cli.StringFlag{
		Name:  "blocks",
		Usage: "JSON file of blocks to import",
	}
	captureDirFlag = cli.StringFlag{
		Name:  "capture-dir",
		Usage: "write the snapshot of each imported block as <index>.bin into this directory",
	}
	dumpFlag = cli.BoolFlag{
		Name:  "dump",
		Usage: "dump every decoded entry",
	}
	blockFlag = cli.StringFlag{
		Name:  "block",
		Usage: "index of the block to replay",
	}
	hashFlag = cli.StringFlag{
		Name:  "hash",
		Usage: "hash of the block to replay",
	}
	snapshotFlag = cli.StringFlag{
		Name:  "snapshot",
		Usage: "snapshot file, binary or JSON",
	}
	remoteFlag = cli.StringFlag{
		Name:  "remote",
		Usage: "base URL of the remote storage read service",
	}
	apiKeyFlag = cli.StringFlag{
		Name:  "api-key",
		Usage: "API key of the remote storage read service",
	}
	pageSizeFlag = cli.IntFlag{
		Name:  "page-size",
		Value: snapshot.DefaultPageSize,
		Usage: "rows per remote page",
	}
	timeoutFlag = cli.DurationFlag{
		Name:  "timeout",
		Value: 30 * time.Second,
		Usage: "timeout of each remote request",
	}
	fromTraceDBFlag = cli.BoolFlag{
		Name:  "from-trace-db",
		Usage: "load the snapshot from the newest captured run in --trace-db",
	}
	diffFlag = cli.BoolFlag{
		Name:  "diff",
		Usage: "print a unified diff of declared and read keys",
	}
	strictFlag = cli.BoolFlag{
		Name:  "strict",
		Usage: "exit with an error when the snapshot does not match the reads",
	}
	fromFlag = cli.Uint64Flag{
		Name:  "from",
		Usage: "first block index",
	}
	toFlag = cli.Uint64Flag{
		Name:  "to",
		Usage: "last block index",
	}
	snapshotDirFlag = cli.StringFlag{
		Name:  "snapshot-dir",
		Usage: "directory holding <index>.bin snapshots",
	}
	workersFlag = cli.IntFlag{
		Name:  "workers",
		Value: 4,
		Usage: "concurrent replays",
	}
)
