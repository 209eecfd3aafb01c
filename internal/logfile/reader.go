package logfile

import (
	"bufio"
	"context"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/xerrors"

	"github.com/coffersTech/nanolog/stalecheck/internal/model"
)

const maxLineBytes = 1 << 20

// Reader streams records out of worker log files and fingerprints every file
// it consumes, so a report can be tied back to the exact inputs.
type Reader struct {
	mu      sync.Mutex
	digests []fileDigest
}

type fileDigest struct {
	name string
	sum  []byte
}

func NewReader() *Reader {
	return &Reader{}
}

// Each calls fn for every record of src in file order. Blank lines are skipped;
// any other malformed line stops the scan with a *ParseError.
func (r *Reader) Each(ctx context.Context, src Source, fn func(model.LogRecord) error) error {
	f, err := os.Open(src.Path)
	if err != nil {
		return xerrors.Errorf("open %s: %w", src.Path, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return xerrors.Errorf("init digest: %w", err)
	}
	raw := io.TeeReader(f, h)

	var in io.Reader = raw
	if strings.HasSuffix(src.Path, zstdSuffix) {
		dec, err := zstd.NewReader(raw)
		if err != nil {
			return xerrors.Errorf("open zstd stream %s: %w", src.Path, err)
		}
		defer dec.Close()
		in = dec
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		rec, err := ParseLine(src.Kind, text)
		if err != nil {
			return &ParseError{Path: src.Path, Line: line, Reason: err.Error()}
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return xerrors.Errorf("read %s: %w", src.Path, err)
	}

	// Hash whatever the decompressor left unread.
	if _, err := io.Copy(io.Discard, raw); err != nil {
		return xerrors.Errorf("drain %s: %w", src.Path, err)
	}

	r.mu.Lock()
	r.digests = append(r.digests, fileDigest{name: filepath.Base(src.Path), sum: h.Sum(nil)})
	r.mu.Unlock()
	return nil
}

// Digest returns a hex BLAKE2b-256 over the names and contents of every file
// consumed so far, in consumption order. Empty when nothing was read.
func (r *Reader) Digest() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.digests) == 0 {
		return ""
	}
	h, _ := blake2b.New256(nil)
	for _, d := range r.digests {
		_, _ = h.Write([]byte(d.name))
		_, _ = h.Write(d.sum)
	}
	return hex.EncodeToString(h.Sum(nil))
}
