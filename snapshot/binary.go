// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package snapshot

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/pkg/errors"
)

// Binary snapshot layout, all integers little endian:
//
//	magic "NSBR" | version u16 | blockIndex u32 | entryCount i32 | entries
//	entry: contractHash [20] | keyLen u16 | key | valueLen i32 | value | readOrder i32
const (
	BinaryVersion uint16 = 1

	headerSize = 4 + 2 + 4 + 4
	// minEntrySize is the fixed part of an entry: hash, key length, value length, read order.
	minEntrySize = statetrace.Hash160Length + 2 + 4 + 4
)

// Magic identifies binary snapshot files.
var Magic = [4]byte{'N', 'S', 'B', 'R'}

// BinaryStateEntry is one captured storage read.
type BinaryStateEntry struct {
	ContractHash statetrace.Hash160
	Key          []byte
	Value        []byte
	ReadOrder    int32
}

// StorageKey returns the entry's storage key.
func (e *BinaryStateEntry) StorageKey() statetrace.StorageKey {
	return statetrace.StorageKey{Contract: e.ContractHash, Key: e.Key}
}

// BinaryStateFile is the captured storage reads of one block.
type BinaryStateFile struct {
	BlockIndex uint32
	Entries    []BinaryStateEntry
}

// WriteBinary serializes f.
func WriteBinary(w io.Writer, f *BinaryStateFile) error {
	if len(f.Entries) > math.MaxInt32 {
		return statetrace.NewFormatError("entry count", len(f.Entries))
	}
	var buf bytes.Buffer
	buf.Write(Magic[:])
	writeLE(&buf, BinaryVersion)
	writeLE(&buf, f.BlockIndex)
	writeLE(&buf, int32(len(f.Entries)))
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}

	for i := range f.Entries {
		e := &f.Entries[i]
		if len(e.Key) > statetrace.MaxStorageKeyLength {
			return statetrace.NewFormatError("key length", len(e.Key))
		}
		if len(e.Value) > math.MaxInt32 {
			return statetrace.NewFormatError("value length", len(e.Value))
		}
		buf.Reset()
		buf.Write(e.ContractHash[:])
		writeLE(&buf, uint16(len(e.Key)))
		buf.Write(e.Key)
		writeLE(&buf, int32(len(e.Value)))
		buf.Write(e.Value)
		writeLE(&buf, e.ReadOrder)
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func writeLE(buf *bytes.Buffer, v interface{}) {
	// bytes.Buffer writes never fail
	_ = binary.Write(buf, binary.LittleEndian, v)
}

// ReadBinary parses a binary snapshot. Any violation rejects the whole
// input with a FormatError. When the reader can tell its remaining length
// (Len() or io.Seeker), declared counts and lengths are checked against it
// before allocation. Entries are returned in file order.
func ReadBinary(r io.Reader) (*BinaryStateFile, error) {
	var header [headerSize]byte
	if err := readExact(r, header[:], "header"); err != nil {
		return nil, err
	}
	if !bytes.Equal(header[:4], Magic[:]) {
		return nil, statetrace.NewFormatError("magic", string(header[:4]))
	}
	if v := binary.LittleEndian.Uint16(header[4:6]); v != BinaryVersion {
		return nil, statetrace.NewFormatError("unsupported version", v)
	}
	f := &BinaryStateFile{BlockIndex: binary.LittleEndian.Uint32(header[6:10])}
	count := int32(binary.LittleEndian.Uint32(header[10:14]))
	if count < 0 {
		return nil, statetrace.NewFormatError("negative entry count", count)
	}

	remaining, known, err := remainingLen(r)
	if err != nil {
		return nil, err
	}
	if known && remaining < int64(count)*minEntrySize {
		return nil, statetrace.NewFormatError("entry count exceeds input", count)
	}

	f.Entries = make([]BinaryStateEntry, 0, minInt(int(count), 1024))
	for i := int32(0); i < count; i++ {
		var e BinaryStateEntry
		if err := readExact(r, e.ContractHash[:], "contract hash"); err != nil {
			return nil, err
		}
		var u16 [2]byte
		if err := readExact(r, u16[:], "key length"); err != nil {
			return nil, err
		}
		e.Key = make([]byte, binary.LittleEndian.Uint16(u16[:]))
		if err := readExact(r, e.Key, "key"); err != nil {
			return nil, err
		}
		var u32 [4]byte
		if err := readExact(r, u32[:], "value length"); err != nil {
			return nil, err
		}
		valueLen := int32(binary.LittleEndian.Uint32(u32[:]))
		if valueLen < 0 {
			return nil, statetrace.NewFormatError("negative value length", valueLen)
		}
		if known {
			if remaining, _, err = remainingLen(r); err != nil {
				return nil, err
			}
			if int64(valueLen) > remaining {
				return nil, statetrace.NewFormatError("value length exceeds input", valueLen)
			}
		}
		if known {
			e.Value = make([]byte, valueLen)
			if err := readExact(r, e.Value, "value"); err != nil {
				return nil, err
			}
		} else if e.Value, err = readGrowing(r, valueLen); err != nil {
			return nil, err
		}
		if err := readExact(r, u32[:], "read order"); err != nil {
			return nil, err
		}
		e.ReadOrder = int32(binary.LittleEndian.Uint32(u32[:]))
		f.Entries = append(f.Entries, e)
	}
	return f, nil
}

// IsBinaryFormat reports whether r starts with the binary magic. Only the
// first four bytes are read and the reader is rewound to its start
// position.
func IsBinaryFormat(r io.ReadSeeker) (bool, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, err
	}
	var magic [4]byte
	n, err := io.ReadFull(r, magic[:])
	if _, serr := r.Seek(start, io.SeekStart); serr != nil {
		return false, serr
	}
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, err
	}
	return n == 4 && magic == Magic, nil
}

func readExact(r io.Reader, buf []byte, what string) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return statetrace.NewFormatError("truncated "+what, len(buf))
		}
		return errors.WithMessage(err, "read "+what)
	}
	return nil
}

// readGrowing reads n bytes without trusting n for the allocation size.
func readGrowing(r io.Reader, n int32) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, minInt(int(n), 4096)))
	if _, err := io.CopyN(buf, r, int64(n)); err != nil {
		if err == io.EOF {
			return nil, statetrace.NewFormatError("truncated value", n)
		}
		return nil, errors.WithMessage(err, "read value")
	}
	return buf.Bytes(), nil
}

type lener interface {
	Len() int
}

// remainingLen returns the unread byte count if r can tell it.
func remainingLen(r io.Reader) (int64, bool, error) {
	switch v := r.(type) {
	case lener:
		return int64(v.Len()), true, nil
	case io.Seeker:
		cur, err := v.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, false, nil
		}
		end, err := v.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, false, nil
		}
		if _, err := v.Seek(cur, io.SeekStart); err != nil {
			return 0, false, err
		}
		return end - cur, true, nil
	}
	return 0, false, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
