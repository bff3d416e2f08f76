// Package nlog - dtnd's logger: buffering, timestamping, writing, and
// flushing/syncing/rotating of per-severity log files, with an optional
// also-to-stderr mirror. Adapted from the teacher's nlog package, trimmed
// to a single buffered writer per severity instead of a double-buffer
// memory pool — the daemon's event loop is already single-threaded for
// state mutation, so the extra buffer-swap complexity bought nothing here.
/*
 * Copyright (c) 2023-2026, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/NVIDIA/aistore/cmn/mono"
)

const (
	maxLineSize = 2 * 1024
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevText = [...]string{"INFO", "WARNING", "ERROR"}

type nlogFile struct {
	mw      sync.Mutex
	file    *os.File
	bw      *bufio.Writer
	written int64
	last    int64 // mono.NanoTime of last flush-to-disk
	erred   bool
	sev     severity
}

var (
	nlogs = [...]*nlogFile{
		sevInfo: {sev: sevInfo},
		sevWarn: {sev: sevWarn},
		sevErr:  {sev: sevErr},
	}

	onceInitFiles sync.Once

	toStderr     bool
	alsoToStderr bool

	logDir string
	role   string // e.g. "node", "cli"
	title  string

	host string
	pid  = os.Getpid()

	redactFnames = map[string]struct{}{} // source filenames to omit from the header
)

var MaxSize int64 = 4 * 1024 * 1024

func init() {
	host, _ = os.Hostname()
}

func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

func SetLogDirRole(dir, r string) { logDir, role = dir, r }
func SetTitle(s string)           { title = s }

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth, "", args...) }
func Infoln(args ...any)                  { log(sevInfo, 0, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 0, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 0, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 0, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 0, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 0, format, args...) }

func InfoLogName() string { return sname() + ".INFO" }
func ErrLogName() string  { return sname() + ".ERROR" }

func sname() string {
	if role == "" {
		return "dtnd"
	}
	return "dtnd." + role
}

func log(sev severity, depth int, format string, args ...any) {
	onceInitFiles.Do(initFiles)

	line := formatLine(sev, depth+1, format, args...)

	if !flag.Parsed() || toStderr {
		os.Stderr.WriteString(line)
		return
	}
	if alsoToStderr || sev >= sevErr {
		os.Stderr.WriteString(line)
	}
	if sev >= sevWarn {
		nlogs[sevErr].write(line)
	}
	nlogs[sevInfo].write(line)
}

func formatLine(sev severity, depth int, format string, args ...any) string {
	var b strings.Builder
	const chars = "IWE"
	b.WriteByte(chars[sev])
	b.WriteByte(' ')
	now := time.Now()
	b.WriteString(now.Format("15:04:05.000000"))
	b.WriteByte(' ')
	if _, fn, ln, ok := runtime.Caller(2 + depth); ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
		if _, redact := redactFnames[fn]; !redact {
			b.WriteString(fn)
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(ln))
			b.WriteByte(' ')
		}
	}
	if format == "" {
		fmt.Fprintln(&b, args...)
	} else {
		fmt.Fprintf(&b, format, args...)
		if !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	s := b.String()
	if len(s) > maxLineSize {
		s = s[:maxLineSize]
	}
	return s
}

func (nl *nlogFile) write(line string) {
	nl.mw.Lock()
	if nl.bw == nil {
		nl.mw.Unlock()
		nl.open()
		nl.mw.Lock()
	}
	n, err := nl.bw.WriteString(line)
	if err != nil {
		nl.erred = true
	}
	nl.written += int64(n)
	rotate := nl.written >= MaxSize
	nl.mw.Unlock()
	if rotate {
		nl.rotate()
	}
}

func (nl *nlogFile) open() {
	nl.mw.Lock()
	defer nl.mw.Unlock()
	if nl.file != nil {
		return
	}
	f, _, err := fcreate(sevText[nl.sev], time.Now())
	if err != nil {
		nl.erred = true
		return
	}
	nl.file = f
	nl.bw = bufio.NewWriterSize(f, 32*1024)
	nl.writeHeader(time.Now(), "Started up")
}

// caller holds nl.mw
func (nl *nlogFile) writeHeader(now time.Time, verb string) {
	s := fmt.Sprintf("host %s, %s for %s/%s\n", host, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	snow := now.Format("2006/01/02 15:04:05")
	nl.bw.WriteString(verb + " at " + snow + ", " + s)
	if title != "" {
		nl.bw.WriteString(title + "\n")
	}
}

func (nl *nlogFile) rotate() {
	nl.mw.Lock()
	defer nl.mw.Unlock()
	if nl.bw != nil {
		nl.bw.Flush()
	}
	if nl.file != nil {
		nl.file.Close()
	}
	f, _, err := fcreate(sevText[nl.sev], time.Now())
	if err != nil {
		nl.erred = true
		return
	}
	nl.file = f
	nl.bw = bufio.NewWriterSize(f, 32*1024)
	nl.written = 0
	nl.erred = false
	nl.writeHeader(time.Now(), "Rotated")
}

func (nl *nlogFile) flush(sync bool) {
	nl.mw.Lock()
	defer nl.mw.Unlock()
	if nl.bw != nil {
		nl.bw.Flush()
	}
	nl.last = mono.NanoTime()
	if sync && nl.file != nil {
		nl.file.Sync()
		nl.file.Close()
		nl.bw = nil
		nl.file = nil
	}
}

func (nl *nlogFile) since(now int64) time.Duration { return time.Duration(now - nl.last) }

func initFiles() {
	for _, nl := range nlogs {
		nl.open()
	}
}

func logfname(tag string, t time.Time) (name, link string) {
	s := sname()
	name = fmt.Sprintf("%s.%s.%s.%02d%02d-%02d%02d%02d.%d",
		s, host, tag, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), pid)
	return name, s + "." + tag
}

func fcreate(tag string, t time.Time) (f *os.File, name string, err error) {
	dir := logDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", err
	}
	name, link := logfname(tag, t)
	full := filepath.Join(dir, name)
	f, err = os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", err
	}
	symlink := filepath.Join(dir, link)
	os.Remove(symlink)
	os.Symlink(name, symlink)
	return f, name, nil
}
