// Package runlog provides the run-statistics log that ships with every
// product directory. It is an explicit sink passed into each pipeline
// stage; stages append through it instead of touching ambient state.
package runlog

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log tees human-readable run lines to the console (through zap) and to
// the *_run_stats.txt file that ends up in the product directory.
type Log struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	logger *zap.SugaredLogger
	closed bool
}

// New creates (truncating) the run log file at path.
func New(path string) (*Log, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log %s: %w", path, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &Log{file: f, path: path, logger: logger.Sugar()}, nil
}

// NewDiscard returns a Log that only writes to the console, for tests and
// dry runs. Close is a no-op for the file side.
func NewDiscard() *Log {
	return &Log{logger: zap.NewNop().Sugar()}
}

// Path returns the location of the run log file, empty for discard logs.
func (l *Log) Path() string { return l.path }

// Printf records an informational line.
func (l *Log) Printf(format string, args ...interface{}) {
	l.write(false, fmt.Sprintf(format, args...))
}

// Errorf records an error line, prefixed ERROR: in the product file.
func (l *Log) Errorf(format string, args ...interface{}) {
	l.write(true, fmt.Sprintf(format, args...))
}

func (l *Log) write(isErr bool, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if isErr {
		l.logger.Error(msg)
		msg = "ERROR: " + msg
	} else {
		l.logger.Info(msg)
	}
	if l.file != nil && !l.closed {
		fmt.Fprintln(l.file, msg)
	}
}

// Close flushes and closes the product file. It is safe to call more than
// once; fatal paths rely on this running before process exit.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Sync() //nolint:errcheck // best effort on console sink
	if l.file == nil || l.closed {
		return nil
	}
	l.closed = true
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}
