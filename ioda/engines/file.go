package engines

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/batchatco/go-native-ioda/ioda/api"
)

// Mode is how an existing file is opened.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

// CreateMode decides what CreateFile does when the file already exists.
type CreateMode int

const (
	TruncateIfExists CreateMode = iota
	FailIfExists
)

type options struct {
	engine     api.Engine
	createMode CreateMode
	layout     *api.Layout
}

// Option configures CreateFile, OpenFile and OpenMemory.
type Option func(*options)

// WithEngine forces the container format instead of picking it from the
// file name or magic number.
func WithEngine(e api.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithCreateMode sets what CreateFile does with an existing file.
func WithCreateMode(m CreateMode) Option {
	return func(o *options) { o.createMode = m }
}

// WithLayout sets the layout a new Obs Group uses. The default is the
// hierarchical layout for engines that store groups, the flat one otherwise.
func WithLayout(l api.Layout) Option {
	return func(o *options) { o.layout = &l }
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// File is an open container. The whole dataset is decoded when the file is
// opened and encoded again when a writable file is flushed, or closed after
// a change.
type File struct {
	path     string
	file     *os.File // nil in memory
	engine   api.Engine
	layout   api.Layout
	writable bool
	dirty    bool
	closed   bool
	policy   api.LayoutPolicy
	ds       *api.Dataset
}

func newFile(path string, f *os.File, e api.Engine, writable bool, o *options) *File {
	layout := api.LayoutFlat
	if e.Hierarchical() {
		layout = api.LayoutHierarchical
	}
	if o.layout != nil {
		layout = *o.layout
	}
	return &File{path: path, file: f, engine: e, layout: layout, writable: writable, ds: api.NewDataset()}
}

// CreateFile creates a writable container at path. The parent directory
// must exist. What happens to an existing file depends on the create mode:
// it is truncated by default.
func CreateFile(path string, opts ...Option) (*File, error) {
	o := buildOptions(opts)
	if st, err := os.Stat(filepath.Dir(path)); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: parent directory of %s does not exist", api.ErrPath, path)
	}
	if st, err := os.Stat(path); err == nil {
		if !st.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s is not a regular file", api.ErrPath, path)
		}
		if o.createMode == FailIfExists {
			return nil, fmt.Errorf("%w: %s already exists", api.ErrWriteProtected, path)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %w", api.ErrWriteProtected, err)
		}
		return nil, fmt.Errorf("%w: %w", api.ErrPath, err)
	}
	e := o.engine
	if e == nil {
		e = ForPath(path)
	}
	logger.Infof("created %s (%s)", path, e.Name())
	file := newFile(path, f, e, true, o)
	file.dirty = true // the file was truncated
	return file, nil
}

// OpenFile opens an existing container. The format is detected from the
// file's magic number unless an engine is given.
func OpenFile(path string, mode Mode, opts ...Option) (*File, error) {
	o := buildOptions(opts)
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %w: %s", api.ErrPath, api.ErrNotFound, path)
	}
	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) && mode == ReadWrite {
			return nil, fmt.Errorf("%w: %w", api.ErrWriteProtected, err)
		}
		return nil, fmt.Errorf("%w: %w", api.ErrPath, err)
	}
	e := o.engine
	if e == nil {
		e, err = Detect(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	ds, err := e.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if mode == ReadWrite && len(ds.Dropped) > 0 {
		f.Close()
		logger.Errorf("%s: cannot be rewritten without losing %q", path, ds.Dropped)
		return nil, fmt.Errorf("%w: %s holds objects %s files cannot rewrite: %q",
			api.ErrWriteProtected, path, e.Name(), ds.Dropped)
	}
	file := newFile(path, f, e, mode == ReadWrite, o)
	file.ds = ds
	logger.Infof("opened %s %s (%s)", path, mode, e.Name())
	return file, nil
}

// OpenMemory returns a writable container that is never persisted. The
// engine, the native one by default, still checks the dataset on Flush.
func OpenMemory(opts ...Option) *File {
	o := buildOptions(opts)
	e := o.engine
	if e == nil {
		e = registered[0]
	}
	file := newFile("", nil, e, true, o)
	file.dirty = true
	return file
}

func (f *File) Path() string       { return f.path }
func (f *File) Engine() api.Engine { return f.engine }
func (f *File) Writable() bool     { return f.writable }
func (f *File) Closed() bool       { return f.closed }
func (f *File) Dirty() bool        { return f.dirty }

// MarkDirty records that the dataset changed, so Close flushes it.
func (f *File) MarkDirty() { f.dirty = true }

// Layout is the layout a new Obs Group gets.
func (f *File) Layout() api.Layout { return f.layout }

// Bound reports whether an Obs Group was bound to the file.
func (f *File) Bound() bool { return f.policy != nil }

// Policy returns the layout policy of the bound Obs Group, or nil.
func (f *File) Policy() api.LayoutPolicy { return f.policy }

// Dataset returns the dataset the file holds: the logical one once an Obs
// Group is bound, the stored one before that.
func (f *File) Dataset() (*api.Dataset, error) {
	if f.closed {
		return nil, api.ErrClosed
	}
	return f.ds, nil
}

// Bind attaches the file's only Obs Group, which sees the dataset through
// policy from then on.
func (f *File) Bind(policy api.LayoutPolicy) error {
	switch {
	case f.closed:
		return api.ErrClosed
	case f.policy != nil:
		return fmt.Errorf("%w: an Obs Group is already bound to %s", api.ErrDuplicateGroup, f.describe())
	case policy.Layout() == api.LayoutHierarchical && !f.engine.Hierarchical():
		return fmt.Errorf("%w: %s files cannot hold group records", api.ErrInvalidLayout, f.engine.Name())
	}
	ds, err := policy.Load(f.ds)
	if err != nil {
		return err
	}
	f.ds = ds
	f.policy = policy
	return nil
}

func (f *File) describe() string {
	if f.path == "" {
		return "memory file"
	}
	return f.path
}

// Flush encodes the dataset and replaces the file's contents with it. The
// file is left untouched when encoding fails.
func (f *File) Flush() error {
	if f.closed {
		return api.ErrClosed
	}
	if !f.writable {
		return fmt.Errorf("%w: %s is read-only", api.ErrWriteProtected, f.describe())
	}
	stored := f.ds
	if f.policy != nil {
		var err error
		stored, err = f.policy.Store(f.ds)
		if err != nil {
			return err
		}
	}
	if f.file == nil {
		if err := f.engine.Encode(io.Discard, stored); err != nil {
			return err
		}
		f.dirty = false
		return nil
	}
	var buf bytes.Buffer
	if err := f.engine.Encode(&buf, stored); err != nil {
		return err
	}
	if _, err := f.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := f.file.Truncate(0); err != nil {
		return err
	}
	if _, err := buf.WriteTo(f.file); err != nil {
		return err
	}
	if err := f.file.Sync(); err != nil {
		return err
	}
	f.dirty = false
	logger.Infof("flushed %s", f.path)
	return nil
}

// Close flushes a writable file that changed since it was opened or last
// flushed, and releases it. Every handle obtained
// through the file is invalid afterwards. Closing twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	var err error
	if f.writable && f.dirty {
		err = f.Flush()
	}
	if f.file != nil {
		err = errors.Join(err, f.file.Close())
		f.file = nil
	}
	f.closed = true
	f.ds = nil
	return err
}
