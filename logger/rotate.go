package logger

import (
	"io"
	"sync"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"gopkg.in/natefinch/lumberjack.v2"
)

// rotatingFile is a log file rotated on a fixed interval. Size-based
// rotation from lumberjack still applies as a safety net.
type rotatingFile struct {
	mu   sync.Mutex
	file *lumberjack.Logger
	out  io.Writer

	stop chan struct{}
	done chan struct{}
}

func newRotatingFile(path string, cfg *Config) (*rotatingFile, error) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.BackupCount,
		LocalTime:  true,
	}
	if cfg.Interval > 0 && cfg.BackupCount > 0 {
		lj.MaxAge = cfg.Interval * cfg.BackupCount
	}

	out, err := encodedWriter(lj, cfg.Encoding)
	if err != nil {
		return nil, err
	}

	rf := &rotatingFile{file: lj, out: out}
	if cfg.Interval > 0 {
		rf.stop = make(chan struct{})
		rf.done = make(chan struct{})
		go rf.run(time.Duration(cfg.Interval) * 24 * time.Hour)
	}
	return rf, nil
}

// encodedWriter wraps w so text is written in the named encoding.
func encodedWriter(w io.Writer, name string) (io.Writer, error) {
	if name == "" {
		return w, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, err
	}
	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		return w, nil
	}
	return transform.NewWriter(w, encoding.ReplaceUnsupported(enc.NewEncoder())), nil
}

func (r *rotatingFile) run(every time.Duration) {
	defer close(r.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = r.Rotate()
		case <-r.stop:
			return
		}
	}
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.Write(p)
}

// Rotate closes the current file, renames it with a timestamp and opens a
// fresh one.
func (r *rotatingFile) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Rotate()
}

func (r *rotatingFile) Close() error {
	if r.stop != nil {
		close(r.stop)
		<-r.done
		r.stop = nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if tw, ok := r.out.(*transform.Writer); ok {
		_ = tw.Close()
	}
	return r.file.Close()
}
