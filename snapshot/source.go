// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package snapshot

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/pkg/errors"
)

// DefaultPageSize is the number of rows fetched per remote page.
const DefaultPageSize = 1000

// Source loads the snapshot of one block.
type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// FileSource loads a snapshot file, binary or JSON.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) (*Snapshot, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.WithMessage(err, "open snapshot")
	}
	defer f.Close()

	binary, err := IsBinaryFormat(f)
	if err != nil {
		return nil, errors.WithMessage(err, "probe snapshot")
	}
	if binary {
		bf, err := ReadBinary(f)
		if err != nil {
			return nil, errors.WithMessage(err, s.Path)
		}
		return FromBinary(bf), nil
	}
	snap, err := ReadJSON(f)
	if err != nil {
		return nil, errors.WithMessage(err, s.Path)
	}
	return snap, nil
}

// Row is one remote storage read. A nil ContractID means KeyBase64 holds
// the full encoded storage key; otherwise it holds the contract-local key.
type Row struct {
	ContractID  *int32 `json:"contract_id"`
	KeyBase64   string `json:"key_base64"`
	ValueBase64 string `json:"value_base64"`
}

// RowFetcher fetches one page of rows of a block, ordered by read order.
type RowFetcher interface {
	FetchRows(ctx context.Context, blockIndex uint32, offset, limit int) ([]Row, error)
}

// ContractResolver maps contract ids to hashes.
type ContractResolver interface {
	ContractHashByID(id int32) (statetrace.Hash160, error)
}

// PagedSource loads a snapshot from fixed-size pages of rows. Paging stops
// at the first page shorter than PageSize.
type PagedSource struct {
	Fetcher    RowFetcher
	Resolver   ContractResolver
	BlockIndex uint32
	PageSize   int
}

// Load implements Source.
func (s *PagedSource) Load(ctx context.Context) (*Snapshot, error) {
	size := s.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	snap := New(s.BlockIndex)
	for offset := 0; ; offset += size {
		rows, err := s.Fetcher.FetchRows(ctx, s.BlockIndex, offset, size)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			key, value, err := s.decode(row)
			if err != nil {
				return nil, err
			}
			snap.Put(key, value)
		}
		log.Debug("fetched rows", "block", s.BlockIndex, "offset", offset, "rows", len(rows))
		if len(rows) < size {
			return snap, nil
		}
	}
}

func (s *PagedSource) decode(row Row) (statetrace.StorageKey, []byte, error) {
	key, err := base64.StdEncoding.DecodeString(row.KeyBase64)
	if err != nil {
		return statetrace.StorageKey{}, nil, statetrace.NewFormatError("base64 key", row.KeyBase64)
	}
	value, err := base64.StdEncoding.DecodeString(row.ValueBase64)
	if err != nil {
		return statetrace.StorageKey{}, nil, statetrace.NewFormatError("base64 value", row.ValueBase64)
	}
	if row.ContractID == nil {
		sk, err := statetrace.DecodeStorageKey(key)
		return sk, value, err
	}
	if s.Resolver == nil {
		return statetrace.StorageKey{}, nil, statetrace.NewNotFoundError("contract", *row.ContractID)
	}
	hash, err := s.Resolver.ContractHashByID(*row.ContractID)
	if err != nil {
		return statetrace.StorageKey{}, nil, err
	}
	return statetrace.StorageKey{Contract: hash, Key: key}, value, nil
}

// RemoteFetcher fetches rows from a REST endpoint exposing a
// storage_reads table. Requests are never retried.
type RemoteFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRemoteFetcher creates a fetcher whose pages time out after timeout.
func NewRemoteFetcher(baseURL, apiKey string, timeout time.Duration) *RemoteFetcher {
	return &RemoteFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: timeout},
	}
}

// FetchRows implements RowFetcher.
func (f *RemoteFetcher) FetchRows(ctx context.Context, blockIndex uint32, offset, limit int) ([]Row, error) {
	q := url.Values{}
	q.Set("select", "contract_id,key_base64,value_base64")
	q.Set("block_index", fmt.Sprintf("eq.%d", blockIndex))
	q.Set("order", "read_order.asc")
	q.Set("limit", fmt.Sprint(limit))
	q.Set("offset", fmt.Sprint(offset))
	u := f.BaseURL + "/storage_reads?" + q.Encode()

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, &statetrace.TransportError{URL: u, Cause: err}
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	if f.APIKey != "" {
		req.Header.Set("apikey", f.APIKey)
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &statetrace.TransportError{URL: u, Cause: err}
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, &statetrace.TransportError{URL: u, Status: resp.StatusCode, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statetrace.TransportError{URL: u, Status: resp.StatusCode}
	}
	var rows []Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, statetrace.NewFormatError("remote rows", err)
	}
	return rows, nil
}
