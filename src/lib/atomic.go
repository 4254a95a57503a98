package lib

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// replaceFile is swapped in tests to simulate a crash before the rename.
var replaceFile = (*renameio.PendingFile).CloseAtomicallyReplace

// AtomicWriteJSON serializes v with two-space indentation and a trailing
// newline, then replaces path so that readers see either the old content or
// the new content, never a partial file.
//
// The data goes to a pending file in the destination directory, is synced to
// disk and renamed over path. On any failure the pending file is removed and
// path is left untouched.
func AtomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return WrapError(err, ErrCodeStorage, "failed to encode JSON").WithContext("path", path)
	}
	data = append(data, '\n')

	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return WrapError(err, ErrCodeStorage, "atomic write failed").WithContext("path", path)
	}
	return nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	pending, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)), renameio.WithStaticPermissions(perm))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer pending.Cleanup()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := replaceFile(pending); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

// AppendJSONL appends v as one compact, newline-terminated JSON line to
// path, creating parent directories as needed. A single small append is
// atomic at the filesystem level, so no temp file is used.
func AppendJSONL(path string, v interface{}) error {
	line, err := json.Marshal(v)
	if err != nil {
		return WrapError(err, ErrCodeStorage, "failed to encode JSONL record").WithContext("path", path)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WrapError(err, ErrCodeStorage, "failed to create history directory").WithContext("path", path)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return WrapError(err, ErrCodeStorage, "failed to open JSONL file").WithContext("path", path)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return WrapError(err, ErrCodeStorage, "failed to append JSONL record").WithContext("path", path)
	}
	return nil
}
