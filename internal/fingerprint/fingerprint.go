// Package fingerprint computes compact content fingerprints for media files.
//
// A fingerprint is the exact byte length of the content plus a 128-bit XXH3
// digest over a bounded sample: the first and last SampleSize bytes, head
// then tail. Content no longer than two samples is digested whole. Files that
// differ only outside the sampled regions produce the same fingerprint.
package fingerprint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

// DefaultSampleSize is the size of each sampled region (64 KiB).
//
// Larger samples lower the chance that two different files collide, at the
// cost of more I/O per file. Audio containers keep headers and tag blocks at
// the head and trailing frames or tags at the tail, so 64 KiB on each side
// already separates typical encodes.
const DefaultSampleSize int64 = 64 << 10

// Fingerprint identifies file content for duplicate comparison.
// Two fingerprints are equal iff both fields are equal, so the type can be
// used directly as a map key.
type Fingerprint struct {
	Size   uint64
	Digest xxh3.Uint128
}

// String renders the fingerprint as "<size>-<digest hex>".
func (f Fingerprint) String() string {
	return fmt.Sprintf("%d-%016x%016x", f.Size, f.Digest.Hi, f.Digest.Lo)
}

// Fingerprinter computes fingerprints. It holds no mutable state and is
// safe for concurrent use.
type Fingerprinter struct {
	sampleSize int64
}

// New creates a Fingerprinter sampling sampleSize bytes at each end.
// A non-positive sampleSize selects DefaultSampleSize.
func New(sampleSize int64) *Fingerprinter {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Fingerprinter{sampleSize: sampleSize}
}

// SampleSize returns the number of bytes sampled from each end.
func (f *Fingerprinter) SampleSize() int64 {
	return f.sampleSize
}

type region struct {
	off, n int64
}

// regions returns the sampled byte ranges for content of the given length.
func (f *Fingerprinter) regions(length int64) []region {
	if length == 0 {
		return nil
	}
	if length <= 2*f.sampleSize {
		return []region{{0, length}}
	}
	return []region{
		{0, f.sampleSize},
		{length - f.sampleSize, f.sampleSize},
	}
}

// File fingerprints the regular file at path. The size is taken from the
// opened file, never from a prior directory listing.
func (f *Fingerprinter) File(ctx context.Context, path string) (Fingerprint, error) {
	if err := ctx.Err(); err != nil {
		return Fingerprint{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, withPath(unreadable(err), path)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Fingerprint{}, withPath(unreadable(err), path)
	}
	if !info.Mode().IsRegular() {
		return Fingerprint{}, withPath(unreadable(fmt.Errorf("not a regular file (%s)", info.Mode().Type())), path)
	}

	fp, err := f.ReaderAt(ctx, file, info.Size())
	return fp, withPath(err, path)
}

// ReaderAt fingerprints length bytes of r.
func (f *Fingerprinter) ReaderAt(ctx context.Context, r io.ReaderAt, length int64) (Fingerprint, error) {
	if length < 0 {
		return Fingerprint{}, corrupt("negative length %d", length)
	}

	h := xxh3.New()
	for _, reg := range f.regions(length) {
		if err := ctx.Err(); err != nil {
			return Fingerprint{}, err
		}
		n, err := io.CopyN(h, io.NewSectionReader(r, reg.off, reg.n), reg.n)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Fingerprint{}, corrupt("read %d of %d bytes at offset %d", n, reg.n, reg.off)
			}
			return Fingerprint{}, unreadable(fmt.Errorf("read at offset %d: %w", reg.off, err))
		}
	}

	return Fingerprint{Size: uint64(length), Digest: h.Sum128()}, nil
}

// Bytes fingerprints a completed in-memory payload whose transport declared
// declaredLength bytes.
func (f *Fingerprinter) Bytes(ctx context.Context, data []byte, declaredLength int64) (Fingerprint, error) {
	if int64(len(data)) != declaredLength {
		return Fingerprint{}, corrupt("received %d bytes, declared %d", len(data), declaredLength)
	}
	return f.ReaderAt(ctx, bytes.NewReader(data), declaredLength)
}

// Stream fingerprints r in a single pass. The stream must yield exactly
// declaredLength bytes.
func (f *Fingerprinter) Stream(ctx context.Context, r io.Reader, declaredLength int64) (Fingerprint, error) {
	if declaredLength < 0 {
		return Fingerprint{}, corrupt("negative length %d", declaredLength)
	}

	h := xxh3.New()
	var pos int64
	for _, reg := range f.regions(declaredLength) {
		if err := ctx.Err(); err != nil {
			return Fingerprint{}, err
		}
		if gap := reg.off - pos; gap > 0 {
			if n, err := io.CopyN(io.Discard, r, gap); err != nil {
				return Fingerprint{}, streamErr(pos+n, declaredLength, err)
			}
		}
		if n, err := io.CopyN(h, r, reg.n); err != nil {
			return Fingerprint{}, streamErr(reg.off+n, declaredLength, err)
		}
		pos = reg.off + reg.n
	}

	var extra [1]byte
	n, err := io.ReadFull(r, extra[:])
	if n > 0 {
		return Fingerprint{}, corrupt("stream longer than declared %d bytes", declaredLength)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return Fingerprint{}, unreadable(err)
	}

	return Fingerprint{Size: uint64(declaredLength), Digest: h.Sum128()}, nil
}

func streamErr(got, declared int64, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return corrupt("stream ended after %d of %d bytes", got, declared)
	}
	return unreadable(err)
}
