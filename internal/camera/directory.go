package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DirectoryDevice reads frames that an external capture process writes into
// a spool directory as JPEG or PNG files. New files are picked up through
// fsnotify; only the newest decoded frame is kept.
type DirectoryDevice struct {
	dir string
	lg  zerolog.Logger
}

// NewDirectoryDevice creates a device over dir.
func NewDirectoryDevice(dir string, lg zerolog.Logger) *DirectoryDevice {
	return &DirectoryDevice{
		dir: dir,
		lg:  lg.With().Str("component", "camera").Str("spool", dir).Logger(),
	}
}

// Name implements Device.
func (d *DirectoryDevice) Name() string { return "dir:" + d.dir }

// Open implements Device. An unreadable spool maps to ErrPermissionDenied.
func (d *DirectoryDevice) Open(ctx context.Context) (FrameSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		default:
			return nil, err
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := w.Add(d.dir); err != nil {
		_ = w.Close()
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	src := &directorySource{
		lg:      d.lg,
		watcher: w,
		done:    make(chan struct{}),
	}
	src.loadNewest(d.dir, entries)

	go src.loop()
	d.lg.Debug().Msg("watching spool for frames")
	return src, nil
}

type directorySource struct {
	slot
	lg      zerolog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func (s *directorySource) Latest() (Frame, bool) {
	return s.latest()
}

func (s *directorySource) Peek() (Frame, bool) {
	return s.latest()
}

func (s *directorySource) Close() error {
	if !s.close() {
		return nil
	}
	err := s.watcher.Close()
	<-s.done
	return err
}

func (s *directorySource) loop() {
	defer close(s.done)
	for {
		select {
		case evt, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && isFrameFile(evt.Name) {
				s.ingest(evt.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.lg.Warn().Err(err).Msg("spool watcher error")
		}
	}
}

// loadNewest publishes the most recently modified frame already in the spool.
func (s *directorySource) loadNewest(dir string, entries []os.DirEntry) {
	type candidate struct {
		path string
		mod  time.Time
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() || !isFrameFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	if len(files) == 0 {
		return
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].mod.Equal(files[j].mod) {
			return files[i].mod.After(files[j].mod)
		}
		return files[i].path > files[j].path
	})
	s.ingest(files[0].path)
}

func (s *directorySource) ingest(path string) {
	f, err := os.Open(path)
	if err != nil {
		return // already rotated away by the capture process
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		// Usually a partially written file; the Write event that completes it follows.
		s.lg.Debug().Err(err).Str("file", filepath.Base(path)).Msg("skipping undecodable frame")
		return
	}
	s.publish(img, time.Now())
}

func isFrameFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
