// Package logging builds the structured loggers used by the binaries.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	// Level is a logrus level name; empty means info.
	Level string
	// File, when set, receives a copy of every entry and is rotated by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
	JSON       bool
	// Out defaults to os.Stdout.
	Out io.Writer
}

// New returns a logger tagged with component.
func New(component string, opts Options) (*logrus.Entry, io.Closer) {
	l := logrus.New()
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	var closer io.Closer = nopCloser{}
	if strings.TrimSpace(opts.File) != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    defaultInt(opts.MaxSizeMB, 64),
			MaxBackups: defaultInt(opts.MaxBackups, 5),
			Compress:   true,
		}
		out = io.MultiWriter(out, lj)
		closer = lj
	}
	l.SetOutput(out)
	if opts.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000000"})
	}
	lvl, err := logrus.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l.WithField("component", component), closer
}

// Discard is a logger for tests and library defaults.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func defaultInt(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
