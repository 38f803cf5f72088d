package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/klauspost/compress/zstd"
)

// zstdSuffix marks a compressed scene file. The name without it selects the backend.
const zstdSuffix = ".zst"

// zstdMagic is the frame magic number of a zstd stream.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// maxPreGrow caps the buffer reserved up front from a reported size.
const maxPreGrow = 1 << 30

// ProgressFunc receives transfer progress. fraction is in [0, 1], or 0 throughout when the
// size is unknown. It is called zero or more times while bytes arrive and exactly once
// with done set after the transfer completes, before parsing starts. A failed transfer
// never reports done.
type ProgressFunc func(fraction float64, done bool)

// progressReader reports bytes read through a ProgressFunc and stops on context cancellation.
type progressReader struct {
	ctx  context.Context
	r    io.Reader
	size int64
	read int64
	fn   ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	p.read += int64(n)
	if n > 0 && p.fn != nil {
		p.fn(p.fraction(), false)
	}
	return n, err
}

func (p *progressReader) fraction() float64 {
	if p.size <= 0 {
		return 0
	}
	return min(float64(p.read)/float64(p.size), 1)
}

// readAll drains r, reporting progress and honouring ctx. size may be zero or negative when unknown.
func readAll(ctx context.Context, r io.Reader, size int64, fn ProgressFunc) ([]byte, error) {
	pr := &progressReader{ctx: ctx, r: r, size: size, fn: fn}

	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(min(size, maxPreGrow)))
	}
	if _, err := buf.ReadFrom(pr); err != nil {
		return nil, err
	}
	if fn != nil {
		fn(1, true)
	}
	return buf.Bytes(), nil
}

// openFile opens a local scene file and reports its size.
func openFile(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// openURL issues a GET for url and returns the response body and its declared length.
func openURL(ctx context.Context, client *http.Client, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}

// decompress strips a zstd layer when name carries the .zst suffix or data starts with
// the zstd magic. It returns the name without the suffix and the raw contents.
func decompress(name string, data []byte) (string, []byte, error) {
	suffixed := strings.HasSuffix(strings.ToLower(name), zstdSuffix)
	if suffixed {
		name = name[:len(name)-len(zstdSuffix)]
	}
	if !suffixed && !bytes.HasPrefix(data, zstdMagic) {
		return name, data, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return name, nil, err
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return name, nil, fmt.Errorf("decompress %q: %v: %w", name, err, common.ErrCorruptData)
	}
	return name, out, nil
}
