package db

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	snapshotMagic   = "MSTORE\x00\x00" // File format identifier
	snapshotVersion = 1
)

// ErrBadSnapshot is returned when a snapshot header does not match.
var ErrBadSnapshot = errors.New("invalid snapshot")

// WriteSnapshot writes every entry of database to w in the engine independent snapshot
// format: magic, version, entry count, then length prefixed key/value pairs.
//
// Entries are collected before anything is written, so concurrent writers see either the
// old or the new state of a key but never block the snapshot.
func WriteSnapshot(w io.Writer, database KVDB) error {
	type pair struct {
		key   string
		value []byte
	}
	var entries []pair

	err := database.Range("", func(key string, value []byte) bool {
		v := make([]byte, len(value))
		copy(v, value)
		entries = append(entries, pair{key, v})
		return true
	})
	if err != nil {
		return fmt.Errorf("snapshot: collect entries: %w", err)
	}

	bw := bufio.NewWriterSize(w, 64*1024)

	if _, err := bw.WriteString(snapshotMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, e := range entries {
		if err := writeChunk(bw, []byte(e.key)); err != nil {
			return err
		}
		if err := writeChunk(bw, e.value); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// ReadSnapshot decodes a snapshot and calls fn for each entry in file order.
func ReadSnapshot(r io.Reader, fn func(key string, value []byte) error) error {
	br := bufio.NewReaderSize(r, 64*1024)

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if string(magic) != snapshotMagic {
		return fmt.Errorf("%w: magic number mismatch", ErrBadSnapshot)
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d (expected %d)", ErrBadSnapshot, version, snapshotVersion)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	for i := uint64(0); i < count; i++ {
		key, err := readChunk(br)
		if err != nil {
			return fmt.Errorf("snapshot: entry %d: %w", i, err)
		}
		value, err := readChunk(br)
		if err != nil {
			return fmt.Errorf("snapshot: entry %d: %w", i, err)
		}
		if err := fn(string(key), value); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot implements KVDB.Load for engines that have no native bulk import:
// every existing entry is deleted, then the snapshot entries are set one by one.
func LoadSnapshot(r io.Reader, database KVDB) error {
	var keys []string
	if err := database.Range("", func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	}); err != nil {
		return err
	}

	// decode into memory first so a corrupt snapshot leaves the database untouched
	type pair struct {
		key   string
		value []byte
	}
	var entries []pair
	if err := ReadSnapshot(r, func(key string, value []byte) error {
		entries = append(entries, pair{key, value})
		return nil
	}); err != nil {
		return err
	}

	for _, k := range keys {
		if err := database.Delete(k); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := database.Set(e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}

func writeChunk(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readChunk(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
