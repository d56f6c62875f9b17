package fs

import (
	"errors"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection. Unset fields default to 0.0.
type ChaosConfig struct {
	// OpenFailRate controls how often FS.OpenFile fails. Read-only opens get
	// EACCES, EIO, EMFILE or ENFILE. Write opens may also get ENOSPC or EROFS.
	OpenFailRate float64

	// ReadFailRate controls how often FS.ReadFile and File.ReadAt fail
	// entirely, returning zero bytes and EIO.
	ReadFailRate float64

	// PartialReadRate controls how often File.ReadAt returns a prefix of the
	// requested range along with EIO.
	PartialReadRate float64

	// WriteFailRate controls how often File.WriteAt fails entirely, writing
	// zero bytes and returning EIO, ENOSPC or EROFS.
	WriteFailRate float64

	// PartialWriteRate controls how often File.WriteAt writes only a prefix
	// before failing. The error type is controlled by ShortWriteRate.
	PartialWriteRate float64

	// ShortWriteRate is the fraction of partial writes that return
	// [io.ErrShortWrite] instead of an errno-style [*fs.PathError].
	ShortWriteRate float64

	// FileStatFailRate controls how often File.Stat fails with EIO.
	FileStatFailRate float64

	// TruncateFailRate controls how often File.Truncate fails with EIO or EROFS.
	TruncateFailRate float64

	// SyncFailRate controls how often File.Sync fails with EIO or ENOSPC.
	SyncFailRate float64

	// CloseFailRate controls how often File.Close reports EIO. The underlying
	// descriptor is always closed.
	CloseFailRate float64

	// StatFailRate controls how often FS.Stat and FS.Exists fail with EACCES
	// or EIO.
	StatFailRate float64

	// RemoveFailRate controls how often FS.Remove fails with EACCES, EBUSY or EIO.
	RemoveFailRate float64
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails     int64
	ReadFails     int64
	WriteFails    int64
	PartialReads  int64
	PartialWrites int64
	FileStatFails int64
	TruncateFails int64
	SyncFails     int64
	CloseFails    int64
	StatFails     int64
	RemoveFails   int64
}

// chaosError marks an error as intentionally injected by [Chaos].
//
// It wraps the underlying error so errors.Is/As continue to work.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
// Returns false if err is nil.
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects random failures for testing.
//
// Injected errors are [*fs.PathError] values carrying a real [syscall.Errno],
// so [errors.Is] and [os.IsPermission] behave like real OS errors, while
// [IsChaosErr] distinguishes injected from real failures. Chaos never injects
// ENOENT.
//
// Each call independently decides whether to inject; there is no per-path
// sticky fault state. A rate of 1.0 makes a fault deterministic, which is how
// most tests use it.
type Chaos struct {
	fs     FS
	rng    *rand.Rand
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex

	openFails     atomic.Int64
	readFails     atomic.Int64
	writeFails    atomic.Int64
	partialReads  atomic.Int64
	partialWrites atomic.Int64
	fileStatFails atomic.Int64
	truncateFails atomic.Int64
	syncFails     atomic.Int64
	closeFails    atomic.Int64
	statFails     atomic.Int64
	removeFails   atomic.Int64
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config *ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	c := &Chaos{
		fs:  underlying,
		rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
	}
	if config != nil {
		c.config = *config
	}

	return c
}

// SetMode updates [Chaos] behavior. Safe to call concurrently with
// filesystem operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:     c.openFails.Load(),
		ReadFails:     c.readFails.Load(),
		WriteFails:    c.writeFails.Load(),
		PartialReads:  c.partialReads.Load(),
		PartialWrites: c.partialWrites.Load(),
		FileStatFails: c.fileStatFails.Load(),
		TruncateFails: c.truncateFails.Load(),
		SyncFails:     c.syncFails.Load(),
		CloseFails:    c.closeFails.Load(),
		StatFails:     c.statFails.Load(),
		RemoveFails:   c.removeFails.Load(),
	}
}

// TotalFaults returns the total number of injected faults.
func (c *Chaos) TotalFaults() int64 {
	s := c.Stats()

	return s.OpenFails + s.ReadFails + s.WriteFails + s.PartialReads + s.PartialWrites +
		s.FileStatFails + s.TruncateFails + s.SyncFails + s.CloseFails + s.StatFails +
		s.RemoveFails
}

// OpenFile opens a file with fault injection. The returned [File] injects
// faults into its own operations.
func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	mode := c.getMode()

	if c.should(mode, c.config.OpenFailRate) {
		c.openFails.Add(1)

		choices := []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EMFILE, syscall.ENFILE}
		if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
			choices = append(choices, syscall.ENOSPC, syscall.EROFS)
		}

		return nil, pathError("open", path, c.pickErrno(choices))
	}

	f, err := c.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{f: f, chaos: c, path: path}, nil
}

// ReadFile reads a file's contents with fault injection.
func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if c.should(c.getMode(), c.config.ReadFailRate) {
		c.readFails.Add(1)

		return nil, pathError("read", path, syscall.EIO)
	}

	return c.fs.ReadFile(path)
}

// WriteFileAtomic passes through to the underlying [FS]. Injected open or
// write faults would only exercise the temp file, which the caller never sees.
func (c *Chaos) WriteFileAtomic(path string, data io.Reader) error {
	if c.should(c.getMode(), c.config.WriteFailRate) {
		c.writeFails.Add(1)

		return pathError("write", path, c.pickErrno([]syscall.Errno{syscall.EIO, syscall.ENOSPC}))
	}

	return c.fs.WriteFileAtomic(path, data)
}

// Stat returns file info with fault injection.
func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if c.should(c.getMode(), c.config.StatFailRate) {
		c.statFails.Add(1)

		return nil, pathError("stat", path, c.pickErrno([]syscall.Errno{syscall.EACCES, syscall.EIO}))
	}

	return c.fs.Stat(path)
}

// Exists checks existence with fault injection.
func (c *Chaos) Exists(path string) (bool, error) {
	if c.should(c.getMode(), c.config.StatFailRate) {
		c.statFails.Add(1)

		return false, pathError("stat", path, c.pickErrno([]syscall.Errno{syscall.EACCES, syscall.EIO}))
	}

	return c.fs.Exists(path)
}

// Remove deletes a file with fault injection.
func (c *Chaos) Remove(path string) error {
	if c.should(c.getMode(), c.config.RemoveFailRate) {
		c.removeFails.Add(1)

		return pathError("remove", path, c.pickErrno([]syscall.Errno{syscall.EACCES, syscall.EBUSY, syscall.EIO}))
	}

	return c.fs.Remove(path)
}

func (c *Chaos) getMode() ChaosMode {
	return ChaosMode(c.mode.Load())
}

// should reports whether to inject a fault with the given rate.
func (c *Chaos) should(mode ChaosMode, rate float64) bool {
	if mode == ChaosModeNoOp || rate <= 0 {
		return false
	}

	if rate >= 1 {
		return true
	}

	return c.randFloat() < rate
}

func (c *Chaos) randFloat() float64 {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.Float64()
}

func (c *Chaos) randIntn(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.IntN(n)
}

func (c *Chaos) pickErrno(choices []syscall.Errno) syscall.Errno {
	return choices[c.randIntn(len(choices))]
}

// pathError builds an injected [*fs.PathError] with a real errno.
func pathError(op, path string, errno syscall.Errno) error {
	return &chaosError{Err: &fs.PathError{Op: op, Path: path, Err: errno}}
}

// chaosFile wraps a [File] and injects faults into positioned I/O.
type chaosFile struct {
	f     File
	chaos *Chaos
	path  string
}

func (cf *chaosFile) ReadAt(p []byte, off int64) (int, error) {
	c := cf.chaos
	mode := c.getMode()

	if c.should(mode, c.config.ReadFailRate) {
		c.readFails.Add(1)

		return 0, pathError("read", cf.path, syscall.EIO)
	}

	if len(p) > 1 && c.should(mode, c.config.PartialReadRate) {
		c.partialReads.Add(1)

		limit := c.randIntn(len(p)-1) + 1

		n, err := cf.f.ReadAt(p[:limit], off)
		if err != nil {
			return n, err
		}

		return n, pathError("read", cf.path, syscall.EIO)
	}

	return cf.f.ReadAt(p, off)
}

func (cf *chaosFile) WriteAt(p []byte, off int64) (int, error) {
	c := cf.chaos
	mode := c.getMode()

	if c.should(mode, c.config.WriteFailRate) {
		c.writeFails.Add(1)

		return 0, pathError("write", cf.path, c.pickErrno([]syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EROFS}))
	}

	if len(p) > 1 && c.should(mode, c.config.PartialWriteRate) {
		c.partialWrites.Add(1)

		limit := c.randIntn(len(p)-1) + 1

		n, err := cf.f.WriteAt(p[:limit], off)
		if err != nil {
			return n, err
		}

		if c.should(mode, c.config.ShortWriteRate) {
			return n, &chaosError{Err: io.ErrShortWrite}
		}

		return n, pathError("write", cf.path, c.pickErrno([]syscall.Errno{syscall.EIO, syscall.ENOSPC}))
	}

	return cf.f.WriteAt(p, off)
}

func (cf *chaosFile) Stat() (os.FileInfo, error) {
	c := cf.chaos
	if c.should(c.getMode(), c.config.FileStatFailRate) {
		c.fileStatFails.Add(1)

		return nil, pathError("stat", cf.path, syscall.EIO)
	}

	return cf.f.Stat()
}

func (cf *chaosFile) Truncate(size int64) error {
	c := cf.chaos
	if c.should(c.getMode(), c.config.TruncateFailRate) {
		c.truncateFails.Add(1)

		return pathError("truncate", cf.path, c.pickErrno([]syscall.Errno{syscall.EIO, syscall.EROFS}))
	}

	return cf.f.Truncate(size)
}

func (cf *chaosFile) Sync() error {
	c := cf.chaos
	if c.should(c.getMode(), c.config.SyncFailRate) {
		c.syncFails.Add(1)

		return pathError("sync", cf.path, c.pickErrno([]syscall.Errno{syscall.EIO, syscall.ENOSPC}))
	}

	return cf.f.Sync()
}

func (cf *chaosFile) Close() error {
	c := cf.chaos
	err := cf.f.Close()

	if err == nil && c.should(c.getMode(), c.config.CloseFailRate) {
		c.closeFails.Add(1)

		return pathError("close", cf.path, syscall.EIO)
	}

	return err
}

// Compile-time interface checks.
var (
	_ FS   = (*Chaos)(nil)
	_ File = (*chaosFile)(nil)
)
