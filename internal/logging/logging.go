// Package logging builds the *log.Logger values the other packages take in
// their Config structs. All component loggers share one writer: a rotating
// file, stderr, or both.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the shared writer.
type Options struct {
	File       string // rotating log file; empty disables it
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Stderr also copies every line to Stderr.
	Stderr bool
}

// Factory hands out prefixed loggers over one writer.
type Factory struct {
	w    io.Writer
	file *lumberjack.Logger
}

// New opens the writer described by opts. With neither a file nor stderr
// the loggers discard everything.
func New(opts Options) (*Factory, error) {
	f := &Factory{}
	var writers []io.Writer

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, err
		}
		f.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		writers = append(writers, f.file)
	}
	if opts.Stderr {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		f.w = io.Discard
	case 1:
		f.w = writers[0]
	default:
		f.w = io.MultiWriter(writers...)
	}
	return f, nil
}

// Logger returns a logger prefixed with [component].
func (f *Factory) Logger(component string) *log.Logger {
	return log.New(f.w, "["+component+"] ", log.LstdFlags)
}

// Writer returns the shared writer.
func (f *Factory) Writer() io.Writer {
	return f.w
}

// Rotate starts a new log file, if there is one.
func (f *Factory) Rotate() error {
	if f.file == nil {
		return nil
	}
	return f.file.Rotate()
}

// Close closes the log file, if there is one.
func (f *Factory) Close() error {
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}
