// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package logging builds the append-only structured log under the
// application config directory. Logging is best-effort by contract: a log
// that cannot be opened or written never blocks or fails the operation it
// describes, so construction degrades to a nop logger instead of returning
// an error.
package logging

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// RetentionDays is how long pruning keeps log entries.
	RetentionDays = 14
	// MaxEntries caps the log file length after pruning.
	MaxEntries = 10000
)

// New opens an append-only JSON-lines logger at path. On any failure it
// returns a nop logger; callers never need to check.
func New(path string) *zap.Logger {
	if path == "" {
		return zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return zap.NewNop()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return zap.NewNop()
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(f)),
		zapcore.InfoLevel,
	)
	return zap.New(core)
}

// Prune drops entries older than the retention window and caps the file to
// MaxEntries lines. Entries whose timestamp cannot be parsed are kept; an
// over-eager prune would be worse than a slightly long file. Errors are
// swallowed: pruning is maintenance, not correctness.
func Prune(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -RetentionDays)

	var kept []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if ts, ok := entryTime(line); ok && ts.Before(cutoff) {
			continue
		}
		kept = append(kept, line)
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return
	}

	if len(kept) > MaxEntries {
		kept = kept[len(kept)-MaxEntries:]
	}
	if len(kept) == 0 {
		_ = os.Remove(path)
		return
	}
	tmp := path + ".prune"
	if err := os.WriteFile(tmp, []byte(strings.Join(kept, "\n")+"\n"), 0600); err != nil {
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
	}
}

// entryTime pulls the ISO8601 "ts" field out of a JSON log line without
// decoding the whole entry.
func entryTime(line string) (time.Time, bool) {
	const key = `"ts":"`
	i := strings.Index(line, key)
	if i < 0 {
		return time.Time{}, false
	}
	rest := line[i+len(key):]
	j := strings.IndexByte(rest, '"')
	if j < 0 {
		return time.Time{}, false
	}
	ts, err := time.Parse("2006-01-02T15:04:05.000Z0700", rest[:j])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
