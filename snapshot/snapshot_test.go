// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package snapshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contractA = statetrace.Hash160Of([]byte("contract a"))
	contractB = statetrace.Hash160Of([]byte("contract b"))
)

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func TestFromBinaryLastWriteWins(t *testing.T) {
	f := &BinaryStateFile{
		BlockIndex: 3,
		Entries: []BinaryStateEntry{
			{contractA, []byte("k"), []byte("late"), 5},
			{contractA, []byte("k"), []byte("early"), 1},
			{contractB, []byte("k"), []byte("other"), 2},
		},
	}
	s := FromBinary(f)
	assert.Equal(t, uint32(3), s.Height)
	assert.Equal(t, 2, s.Len())

	v, ok := s.Get(statetrace.StorageKey{Contract: contractA, Key: []byte("k")})
	assert.True(t, ok)
	assert.Equal(t, []byte("early"), v, "file order decides, not read order")
}

func TestSeed(t *testing.T) {
	s := New(1)
	s.Put(statetrace.StorageKey{Contract: contractA, Key: []byte("x")}, []byte("1"))
	store := storage.NewMemStore()
	defer store.Close()

	require.NoError(t, s.Seed(store))
	v, err := store.Get(statetrace.StorageKey{Contract: contractA, Key: []byte("x")}.Encode())
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestFromReads(t *testing.T) {
	f := FromReads(9, []Read{
		{statetrace.StorageKey{Contract: contractB, Key: []byte("b")}, []byte("2"), 7},
		{statetrace.StorageKey{Contract: contractA, Key: []byte("a")}, []byte("1"), 4},
	})
	assert.Equal(t, uint32(9), f.BlockIndex)
	require.Len(t, f.Entries, 2)
	assert.Equal(t, []byte("a"), f.Entries[0].Key)
	assert.Equal(t, int32(0), f.Entries[0].ReadOrder)
	assert.Equal(t, int32(1), f.Entries[1].ReadOrder)
}

func TestJSON(t *testing.T) {
	key := statetrace.StorageKey{Contract: contractA, Key: []byte{1, 2}}
	doc := fmt.Sprintf(`{"block":12,"keyCount":1,"keys":[{"key":%q,"value":%q}]}`, b64(key.Encode()), b64([]byte("v")))

	s, err := ReadJSON(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, uint32(12), s.Height)
	v, ok := s.Get(key)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, s))
	again, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, s.Keys(), again.Keys())

	_, err = ReadJSON(strings.NewReader(`{"block":1,"keyCount":2,"keys":[]}`))
	assert.True(t, statetrace.IsValidationError(err))

	_, err = ReadJSON(strings.NewReader(`{"block":1,"keys":[{"key":"!!","value":""}]}`))
	assert.True(t, statetrace.IsFormatError(err))

	_, err = ReadJSON(strings.NewReader(`{"block":1,"keys":[{"key":"AQI=","value":""}]}`))
	assert.True(t, statetrace.IsFormatError(err), "key shorter than a contract hash")

	_, err = ReadJSON(strings.NewReader(`not json`))
	assert.True(t, statetrace.IsFormatError(err))
}

func TestFileSource(t *testing.T) {
	dir, err := ioutil.TempDir("", "snapshot")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	binPath := filepath.Join(dir, "42.bin")
	require.NoError(t, ioutil.WriteFile(binPath, scenarioA(), 0600))
	s, err := (&FileSource{binPath}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(42), s.Height)
	assert.Equal(t, 1, s.Len())

	key := statetrace.StorageKey{Contract: contractA, Key: []byte("k")}
	jsonPath := filepath.Join(dir, "5.json")
	doc := fmt.Sprintf(`{"block":5,"keys":[{"key":%q,"value":""}]}`, b64(key.Encode()))
	require.NoError(t, ioutil.WriteFile(jsonPath, []byte(doc), 0600))
	s, err = (&FileSource{jsonPath}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(5), s.Height)

	badPath := filepath.Join(dir, "bad.bin")
	data := scenarioA()
	require.NoError(t, ioutil.WriteFile(badPath, data[:len(data)-3], 0600))
	_, err = (&FileSource{badPath}).Load(context.Background())
	assert.True(t, statetrace.IsFormatError(err))

	_, err = (&FileSource{filepath.Join(dir, "missing")}).Load(context.Background())
	assert.Error(t, err)
}

type resolver map[int32]statetrace.Hash160

func (r resolver) ContractHashByID(id int32) (statetrace.Hash160, error) {
	if h, ok := r[id]; ok {
		return h, nil
	}
	return statetrace.Hash160{}, statetrace.NewNotFoundError("contract", id)
}

func newRowServer(t *testing.T, rows []Row, status int) (*httptest.Server, *[]string) {
	var queries []string
	router := mux.NewRouter()
	router.HandleFunc("/storage_reads", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "secret", req.Header.Get("apikey"))
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
		q := req.URL.Query()
		queries = append(queries, q.Get("offset"))
		assert.Equal(t, "eq.8", q.Get("block_index"))
		assert.Equal(t, "read_order.asc", q.Get("order"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		end := offset + limit
		if end > len(rows) {
			end = len(rows)
		}
		page := []Row{}
		if offset < len(rows) {
			page = rows[offset:end]
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	}).Methods(http.MethodGet)
	return httptest.NewServer(router), &queries
}

func TestPagedRemoteSource(t *testing.T) {
	id := int32(1)
	var rows []Row
	for i := 0; i < 5; i++ {
		rows = append(rows, Row{
			ContractID:  &id,
			KeyBase64:   b64([]byte{byte(i)}),
			ValueBase64: b64([]byte{byte(i * 2)}),
		})
	}
	full := statetrace.StorageKey{Contract: contractB, Key: []byte("raw")}
	rows = append(rows, Row{KeyBase64: b64(full.Encode()), ValueBase64: b64([]byte("r"))})

	srv, queries := newRowServer(t, rows, http.StatusOK)
	defer srv.Close()

	src := &PagedSource{
		Fetcher:    NewRemoteFetcher(srv.URL+"/", "secret", time.Second),
		Resolver:   resolver{1: contractA},
		BlockIndex: 8,
		PageSize:   2,
	}
	s, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(8), s.Height)
	assert.Equal(t, 6, s.Len())
	assert.Equal(t, []string{"0", "2", "4", "6"}, *queries, "stops on the short page")

	v, ok := s.Get(statetrace.StorageKey{Contract: contractA, Key: []byte{3}})
	assert.True(t, ok)
	assert.Equal(t, []byte{6}, v)
	v, ok = s.Get(full)
	assert.True(t, ok)
	assert.Equal(t, []byte("r"), v)
}

func TestPagedRemoteSourceFailure(t *testing.T) {
	srv, queries := newRowServer(t, nil, http.StatusServiceUnavailable)
	defer srv.Close()

	src := &PagedSource{
		Fetcher:    NewRemoteFetcher(srv.URL, "secret", time.Second),
		BlockIndex: 8,
	}
	_, err := src.Load(context.Background())
	assert.True(t, statetrace.IsTransportError(err))
	assert.Len(t, *queries, 1, "no retry")
}

func TestPagedSourceUnresolvedContract(t *testing.T) {
	id := int32(4)
	srv, _ := newRowServer(t, []Row{{ContractID: &id, KeyBase64: "AA==", ValueBase64: ""}}, http.StatusOK)
	defer srv.Close()

	src := &PagedSource{
		Fetcher:    NewRemoteFetcher(srv.URL, "secret", time.Second),
		Resolver:   resolver{},
		BlockIndex: 8,
	}
	_, err := src.Load(context.Background())
	assert.True(t, statetrace.IsNotFound(err))
}
