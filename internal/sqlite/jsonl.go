package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

// SnapshotStats counts records moved by Export or Import, per collection.
type SnapshotStats struct {
	Written map[string]int `json:"written"`
	Skipped map[string]int `json:"skipped"`
}

func newSnapshotStats() SnapshotStats {
	return SnapshotStats{Written: map[string]int{}, Skipped: map[string]int{}}
}

// SnapshotPath returns the JSONL file for a collection inside dir.
func SnapshotPath(dir, collection string) string {
	return filepath.Join(dir, collection+".jsonl")
}

// Export writes every collection of store to <dir>/<collection>.jsonl, one
// record per line. Each file is replaced atomically. Works with any Store.
func Export(ctx context.Context, store types.Store, dir string) (SnapshotStats, error) {
	stats := newSnapshotStats()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return stats, fmt.Errorf("creating export dir: %w", err)
	}
	if err := exportCollection(ctx, store.Agents(), dir, stats); err != nil {
		return stats, err
	}
	if err := exportCollection(ctx, store.Songs(), dir, stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// ProfileImporter writes one imported agent profile while keeping handles
// unique. An error wrapping ErrDuplicateKey, ErrInvalidKey or ErrValidation
// marks the record as skipped; any other error aborts the import.
type ProfileImporter interface {
	ImportProfile(ctx context.Context, a types.AgentProfile) error
}

// Import upserts every record found in <dir>/<collection>.jsonl. Agent
// profiles go through profiles so a snapshot cannot introduce a second
// agent with the same handle. Missing files are skipped; lines that are not
// JSON, do not decode into a record or are refused are counted in Skipped.
func Import(ctx context.Context, store types.Store, profiles ProfileImporter, dir string) (SnapshotStats, error) {
	stats := newSnapshotStats()
	if err := importCollection(ctx, types.AgentsCollection, dir, stats, profiles.ImportProfile); err != nil {
		return stats, err
	}
	if err := importCollection(ctx, types.SongsCollection, dir, stats, store.Songs().Update); err != nil {
		return stats, err
	}
	return stats, nil
}

func exportCollection[T types.Record](ctx context.Context, c types.Collection[T], dir string, stats SnapshotStats) error {
	recs, err := c.GetAll(ctx)
	if err != nil {
		return err
	}
	lines := make([]json.RawMessage, 0, len(recs))
	for _, rec := range recs {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding %s %q: %w", c.Name(), rec.RecordKey(), err)
		}
		lines = append(lines, b)
	}
	if err := writeJSONL(SnapshotPath(dir, c.Name()), lines); err != nil {
		return err
	}
	stats.Written[c.Name()] = len(lines)
	return nil
}

func importCollection[T types.Record](ctx context.Context, name, dir string, stats SnapshotStats, put func(context.Context, T) error) error {
	lines, invalid, err := readJSONL(SnapshotPath(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if invalid > 0 {
		stats.Skipped[name] += invalid
	}
	for _, line := range lines {
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil || rec.RecordKey() == "" {
			stats.Skipped[name]++
			continue
		}
		if err := put(ctx, rec); err != nil {
			if !refused(err) {
				return err
			}
			stats.Skipped[name]++
			continue
		}
		stats.Written[name]++
	}
	return nil
}

// refused reports whether a write error rejects only the one record.
func refused(err error) bool {
	return errors.Is(err, types.ErrDuplicateKey) ||
		errors.Is(err, types.ErrInvalidKey) ||
		errors.Is(err, types.ErrValidation)
}

// maxLineBytes bounds one JSONL record; song records carry a full clue matrix.
const maxLineBytes = 4 << 20

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage, plus the number of non-empty lines that are not JSON.
func readJSONL(path string) (records []json.RawMessage, invalid int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			invalid++
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, invalid, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
