// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package tracestore keeps captured runs in SQLite: the storage reads that
// make up a block's snapshot plus the traces recorded while capturing it.
package tracestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/base64"
	"strings"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/miniBamboo/statetrace/block"
	"github.com/miniBamboo/statetrace/snapshot"
	"github.com/miniBamboo/statetrace/tracers"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

var log = log15.New("pkg", "tracestore")

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite backed store of captured runs.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithMessage(err, "open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.WithMessage(err, "connect database")
	}
	// one writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.WithMessage(err, pragma)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.WithMessage(err, "apply schema")
	}
	return &Store{db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run describes one saved capture.
type Run struct {
	ID         string
	BlockIndex uint32
	BlockHash  string
	Created    time.Time
}

// SaveCapture stores the snapshot and traces of a capture of blk under a
// new run id.
func (s *Store) SaveCapture(ctx context.Context, blk *block.Block, file *snapshot.BinaryStateFile, recorders []*tracers.Recorder) (string, error) {
	runID := uuid.NewRandom().String()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, block_index, block_hash, created) VALUES (?, ?, ?, ?)",
		runID, blk.Index(), blk.Hash().String(), time.Now().UnixNano()); err != nil {
		return "", errors.WithMessage(err, "insert run")
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO storage_reads (run_id, block_index, contract_id, key_base64, value_base64, read_order) VALUES (?, ?, NULL, ?, ?, ?)")
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for _, e := range file.Entries {
		key := base64.StdEncoding.EncodeToString(e.StorageKey().Encode())
		value := base64.StdEncoding.EncodeToString(e.Value)
		if _, err := stmt.ExecContext(ctx, runID, file.BlockIndex, key, value, e.ReadOrder); err != nil {
			return "", errors.WithMessage(err, "insert storage read")
		}
	}

	for _, r := range recorders {
		if err := saveTraces(ctx, tx, runID, r); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	log.Debug("saved capture", "run", runID, "block", blk.Index(), "reads", len(file.Entries))
	return runID, nil
}

func saveTraces(ctx context.Context, tx *sql.Tx, runID string, r *tracers.Recorder) error {
	exec := func(query string, args ...interface{}) error {
		_, err := tx.ExecContext(ctx, query, append([]interface{}{runID}, args...)...)
		return err
	}
	for _, ev := range r.OpCodeTraces() {
		if err := exec("INSERT INTO opcode_traces VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			int64(ev.Order), ev.ContractHash.String(), ev.InstructionPointer, ev.OpCode.String(), ev.Operand, ev.GasConsumed, ev.StackDepth); err != nil {
			return errors.WithMessage(err, "insert opcode trace")
		}
	}
	for _, ev := range r.SyscallTraces() {
		if err := exec("INSERT INTO syscall_traces VALUES (?, ?, ?, ?, ?)",
			int64(ev.Order), ev.ContractHash.String(), ev.SyscallName, ev.GasCost); err != nil {
			return errors.WithMessage(err, "insert syscall trace")
		}
	}
	for _, ev := range r.ContractCallTraces() {
		var caller interface{}
		if ev.CallerHash != nil {
			caller = ev.CallerHash.String()
		}
		var gas interface{}
		if ev.GasConsumed != nil {
			gas = *ev.GasConsumed
		}
		if err := exec("INSERT INTO contract_calls VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			int64(ev.Order), caller, ev.CalleeHash.String(), ev.MethodName, ev.CallDepth, ev.Success, gas); err != nil {
			return errors.WithMessage(err, "insert contract call")
		}
	}
	for _, ev := range r.StorageReadTraces() {
		if err := exec("INSERT INTO storage_read_traces VALUES (?, ?, ?, ?, ?)",
			int64(ev.Order), ev.ContractHash.String(), ev.Key, ev.Value); err != nil {
			return errors.WithMessage(err, "insert storage read trace")
		}
	}
	for _, ev := range r.StorageWriteTraces() {
		if err := exec("INSERT INTO storage_writes VALUES (?, ?, ?, ?, ?)",
			int64(ev.Order), ev.ContractHash.String(), ev.Key, ev.Value); err != nil {
			return errors.WithMessage(err, "insert storage write")
		}
	}
	for _, ev := range r.NotificationTraces() {
		if err := exec("INSERT INTO notifications VALUES (?, ?, ?, ?, ?)",
			int64(ev.Order), ev.ContractHash.String(), ev.EventName, strings.Join(ev.State, ",")); err != nil {
			return errors.WithMessage(err, "insert notification")
		}
	}
	for _, ev := range r.LogTraces() {
		if err := exec("INSERT INTO logs VALUES (?, ?, ?, ?)",
			int64(ev.Order), ev.ContractHash.String(), ev.Message); err != nil {
			return errors.WithMessage(err, "insert log")
		}
	}
	return nil
}

// Runs lists the runs of a block, newest first.
func (s *Store) Runs(ctx context.Context, blockIndex uint32) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, block_index, block_hash, created FROM runs WHERE block_index = ? ORDER BY created DESC, rowid DESC",
		blockIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			created int64
		)
		if err := rows.Scan(&run.ID, &run.BlockIndex, &run.BlockHash, &created); err != nil {
			return nil, err
		}
		run.Created = time.Unix(0, created)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FetchRows implements snapshot.RowFetcher over the newest run of a block.
func (s *Store) FetchRows(ctx context.Context, blockIndex uint32, offset, limit int) ([]snapshot.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT contract_id, key_base64, value_base64 FROM storage_reads
		WHERE run_id = (SELECT id FROM runs WHERE block_index = ? ORDER BY created DESC, rowid DESC LIMIT 1)
		ORDER BY read_order ASC LIMIT ? OFFSET ?`,
		blockIndex, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []snapshot.Row
	for rows.Next() {
		var (
			row snapshot.Row
			id  sql.NullInt64
		)
		if err := rows.Scan(&id, &row.KeyBase64, &row.ValueBase64); err != nil {
			return nil, err
		}
		if id.Valid {
			v := int32(id.Int64)
			row.ContractID = &v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// OpCodeCount returns the number of opcode traces saved for a run.
func (s *Store) OpCodeCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM opcode_traces WHERE run_id = ?", runID).Scan(&n)
	return n, err
}

// StorageReadTraceCount returns the number of storage read traces saved for a run.
func (s *Store) StorageReadTraceCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM storage_read_traces WHERE run_id = ?", runID).Scan(&n)
	return n, err
}

// Source returns a snapshot source reading the newest run of a block.
func (s *Store) Source(blockIndex uint32) snapshot.Source {
	return &snapshot.PagedSource{Fetcher: s, BlockIndex: blockIndex}
}

var _ snapshot.RowFetcher = (*Store)(nil)
