// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"github.com/miniBamboo/statetrace/block"
	"github.com/miniBamboo/statetrace/chain"
	"github.com/miniBamboo/statetrace/genesis"
	"github.com/miniBamboo/statetrace/replay"
	"github.com/miniBamboo/statetrace/snapshot"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/tracers"
	"github.com/miniBamboo/statetrace/tracestore"
	"github.com/pkg/errors"
	pb "gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"
)

func openRepo(cfg *config) (*chain.Repository, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, errors.WithMessage(err, "create data dir")
	}
	return chain.Open(cfg.DataDir)
}

func openTraceDB(cfg *config) (*tracestore.Store, error) {
	if cfg.TraceDB == "" {
		return nil, nil
	}
	return tracestore.Open(cfg.TraceDB)
}

func loadGenesis(path string) (*genesis.Genesis, error) {
	if path == "" {
		return genesis.NewDevnet(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithMessage(err, "open genesis file")
	}
	defer file.Close()

	var gen genesis.CustomGenesis
	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&gen); err != nil {
		return nil, errors.WithMessage(err, "decode genesis file")
	}
	return genesis.NewCustomNet(&gen)
}

func initAction(ctx *cli.Context) error {
	cfg, err := resolveConfig(ctx)
	if err != nil {
		return err
	}
	gene, err := loadGenesis(ctx.String(genesisFlag.Name))
	if err != nil {
		return err
	}
	repo, err := openRepo(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	blk, err := gene.Build(repo)
	if err != nil {
		return err
	}
	log.Info("initialized chain", "genesis", gene.Name(), "hash", blk.Hash(), "dir", cfg.DataDir)
	return nil
}

func importAction(ctx *cli.Context) error {
	cfg, err := resolveConfig(ctx)
	if err != nil {
		return err
	}
	path := ctx.String(blocksFlag.Name)
	if path == "" {
		return errors.New("--blocks is required")
	}
	file, err := os.Open(path)
	if err != nil {
		return errors.WithMessage(err, "open blocks file")
	}
	defer file.Close()
	blocks, err := decodeBlocks(file)
	if err != nil {
		return err
	}

	captureDir := ctx.String(captureDirFlag.Name)
	if captureDir != "" {
		if err := os.MkdirAll(captureDir, 0700); err != nil {
			return errors.WithMessage(err, "create capture dir")
		}
	}
	repo, err := openRepo(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()
	store, err := openTraceDB(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	best := repo.BestBlock()
	if best == nil {
		return errors.New("chain not initialized, run init first")
	}
	for i := range blocks {
		blk := blocks[i].build(best.Header())
		captured, err := replay.Capture(context.Background(), repo, blk, cfg.level)
		if err != nil {
			return errors.WithMessage(err, fmt.Sprintf("import block %d", blk.Index()))
		}
		if captureDir != "" {
			if err := writeSnapshotFile(filepath.Join(captureDir, snapshotFileName(blk.Index())), captured.File); err != nil {
				return err
			}
		}
		if store != nil {
			runID, err := store.SaveCapture(context.Background(), blk, captured.File, captured.Recorders)
			if err != nil {
				return err
			}
			log.Debug("saved run", "block", blk.Index(), "run", runID)
		}
		log.Info("imported block", "index", blk.Index(), "hash", blk.Hash(), "txs", len(blk.Transactions()),
			"faulted", captured.Phases.Faulted(), "reads", len(captured.File.Entries))
		best = blk
	}
	return nil
}

func snapshotFileName(index uint32) string {
	return strconv.FormatUint(uint64(index), 10) + ".bin"
}

func writeSnapshotFile(path string, f *snapshot.BinaryStateFile) error {
	var buf bytes.Buffer
	if err := snapshot.WriteBinary(&buf, f); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return errors.WithMessage(err, "write snapshot")
	}
	return os.Rename(tmp, path)
}

func inspectAction(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return errors.New("missing snapshot file")
	}
	return inspect(os.Stdout, path, ctx.Bool(dumpFlag.Name))
}

// inspect prints a summary of a snapshot file: the declared block, the key
// count and the keys per contract.
func inspect(w io.Writer, path string, dump bool) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	binary, err := snapshot.IsBinaryFormat(file)
	if err != nil {
		return err
	}
	var snap *snapshot.Snapshot
	if binary {
		bf, err := snapshot.ReadBinary(file)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "format:  NSBR v%d\n", snapshot.BinaryVersion)
		fmt.Fprintf(w, "entries: %d\n", len(bf.Entries))
		if dump {
			defer spew.Fdump(w, bf.Entries)
		}
		snap = snapshot.FromBinary(bf)
	} else {
		if snap, err = snapshot.ReadJSON(file); err != nil {
			return err
		}
		fmt.Fprintln(w, "format:  JSON")
		if dump {
			defer spew.Fdump(w, snap.Keys())
		}
	}

	fmt.Fprintf(w, "block:   %d\n", snap.Height)
	if snap.Hash != nil {
		fmt.Fprintf(w, "hash:    %v\n", *snap.Hash)
	}
	fmt.Fprintf(w, "keys:    %d\n", snap.Len())

	perContract := make(map[statetrace.Hash160]int)
	for _, k := range snap.Keys() {
		perContract[k.Contract]++
	}
	contracts := make([]statetrace.Hash160, 0, len(perContract))
	for c := range perContract {
		contracts = append(contracts, c)
	}
	sort.Slice(contracts, func(i, j int) bool { return bytes.Compare(contracts[i][:], contracts[j][:]) < 0 })
	for _, c := range contracts {
		fmt.Fprintf(w, "  %v %d\n", c, perContract[c])
	}
	return nil
}

func replayAction(ctx *cli.Context) error {
	cfg, err := resolveConfig(ctx)
	if err != nil {
		return err
	}
	repo, err := openRepo(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	var req replay.Request
	switch {
	case ctx.String(hashFlag.Name) != "":
		hash, err := statetrace.ParseBytes32(ctx.String(hashFlag.Name))
		if err != nil {
			return errors.WithMessage(err, "invalid --hash")
		}
		req.BlockHash = &hash
	case ctx.String(blockFlag.Name) != "":
		index, err := strconv.ParseUint(ctx.String(blockFlag.Name), 0, 32)
		if err != nil {
			return errors.WithMessage(err, "invalid --block")
		}
		i := uint32(index)
		req.BlockIndex = &i
	default:
		return errors.New("one of --block or --hash is required")
	}
	// remote and trace db sources are keyed by index
	var blk *block.Block
	if req.BlockHash != nil {
		blk, err = repo.BlockByHash(*req.BlockHash)
	} else {
		blk, err = repo.BlockByIndex(*req.BlockIndex)
	}
	if err != nil {
		return err
	}

	var store *tracestore.Store
	switch {
	case ctx.String(snapshotFlag.Name) != "":
		req.Source = &snapshot.FileSource{Path: ctx.String(snapshotFlag.Name)}
	case cfg.Remote.URL != "":
		req.Source = &snapshot.PagedSource{
			Fetcher:    snapshot.NewRemoteFetcher(cfg.Remote.URL, cfg.Remote.APIKey, cfg.Remote.Timeout),
			Resolver:   repo,
			BlockIndex: blk.Index(),
			PageSize:   cfg.Remote.PageSize,
		}
	case ctx.Bool(fromTraceDBFlag.Name):
		if store, err = openTraceDB(cfg); err != nil {
			return err
		}
		if store == nil {
			return errors.New("--from-trace-db needs --trace-db")
		}
		defer store.Close()
		req.Source = store.Source(blk.Index())
	default:
		return errors.New("one of --snapshot, --remote or --from-trace-db is required")
	}

	r := replay.New(repo, cfg.level)
	r.SetCacheSize(cfg.CacheSize)
	res, err := r.Replay(context.Background(), req)
	if err != nil {
		return err
	}
	if err := printResult(os.Stdout, res, ctx.Bool(diffFlag.Name)); err != nil {
		return err
	}
	if ctx.Bool(strictFlag.Name) && !res.Report.Clean() {
		return errors.Errorf("block %d: snapshot does not match reads", res.Block.Index())
	}
	return nil
}

func printResult(w io.Writer, res *replay.Result, diff bool) error {
	fmt.Fprint(w, res.Phases.String())
	fmt.Fprint(w, res.Report.String())
	if len(res.Recorders) > 0 {
		printTraceSummary(w, res.Recorders)
	}
	if diff && !res.Report.Clean() {
		text, err := res.Report.UnifiedDiff()
		if err != nil {
			return err
		}
		fmt.Fprint(w, text)
	}
	return nil
}

func printTraceSummary(w io.Writer, recorders []*tracers.Recorder) {
	var ops, syscalls, calls, reads, writes, notes, logs int
	for _, r := range recorders {
		ops += len(r.OpCodeTraces())
		syscalls += len(r.SyscallTraces())
		calls += len(r.ContractCallTraces())
		reads += len(r.StorageReadTraces())
		writes += len(r.StorageWriteTraces())
		notes += len(r.NotificationTraces())
		logs += len(r.LogTraces())
	}
	fmt.Fprintf(w, "traces: engines=%d opcodes=%d syscalls=%d calls=%d reads=%d writes=%d notifications=%d logs=%d\n",
		len(recorders), ops, syscalls, calls, reads, writes, notes, logs)
}

func replayRangeAction(ctx *cli.Context) error {
	cfg, err := resolveConfig(ctx)
	if err != nil {
		return err
	}
	from, to := ctx.Uint64(fromFlag.Name), ctx.Uint64(toFlag.Name)
	if to < from || to > uint64(^uint32(0)) {
		return errors.Errorf("invalid range [%d, %d]", from, to)
	}
	dir := ctx.String(snapshotDirFlag.Name)
	if dir == "" {
		return errors.New("--snapshot-dir is required")
	}
	repo, err := openRepo(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	reqs := make([]replay.Request, 0, to-from+1)
	for i := from; i <= to; i++ {
		index := uint32(i)
		reqs = append(reqs, replay.Request{
			BlockIndex: &index,
			Source:     &snapshot.FileSource{Path: filepath.Join(dir, snapshotFileName(index))},
		})
	}

	bar := pb.New(len(reqs))
	bar.Output = os.Stderr
	bar.ShowSpeed = true
	bar.Start()
	r := replay.New(repo, cfg.level)
	r.SetCacheSize(cfg.CacheSize)
	results, errs := r.ReplayAll(context.Background(), reqs, ctx.Int(workersFlag.Name), func(int) { bar.Increment() })
	bar.Finish()

	failed, dirty := summarizeRange(os.Stdout, reqs, results, errs)
	if failed > 0 {
		return errors.Errorf("%d of %d replays failed", failed, len(reqs))
	}
	if ctx.Bool(strictFlag.Name) && dirty > 0 {
		return errors.Errorf("%d of %d snapshots do not match reads", dirty, len(reqs))
	}
	return nil
}

// summarizeRange prints one line per replay and returns the number of
// failed replays and of completed replays whose report is not clean.
func summarizeRange(w io.Writer, reqs []replay.Request, results []*replay.Result, errs []error) (failed, dirty int) {
	for i, req := range reqs {
		if errs[i] != nil {
			failed++
			fmt.Fprintf(w, "#%d error: %v\n", *req.BlockIndex, errs[i])
			continue
		}
		rep := results[i].Report
		status := "clean"
		if !rep.Clean() {
			status = "dirty"
			dirty++
		}
		fmt.Fprintf(w, "#%d %s declared=%d read=%d not-read=%d unexpected=%d missing=%d faulted=%d\n",
			*req.BlockIndex, status, rep.Declared, rep.Hits, len(rep.NotRead), len(rep.UnexpectedHits), len(rep.Misses),
			results[i].Phases.Faulted())
	}
	return
}
