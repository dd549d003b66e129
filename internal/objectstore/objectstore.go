// Package objectstore puts uploaded audio files into the bucket the backend
// reads job input from.
package objectstore

import (
	"context"
	"io"

	"github.com/me/shennong/pkg/model"
)

// ProgressFunc receives the bytes transferred so far for one object.
type ProgressFunc func(loaded, total int64)

// Store writes and removes objects by key.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, progress ProgressFunc) error
	Delete(ctx context.Context, key string) error
}

// Factory opens a Store with a set of temporary credentials. One Store is
// opened per upload batch.
type Factory func(ctx context.Context, creds model.TempCredentials) (Store, error)

// progressReader reports cumulative bytes read to fn. With hold set it
// stops one byte short of total, leaving the final report to the caller
// once the store has accepted the object.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	hold  bool
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.fn != nil {
			loaded := p.read
			if p.hold && loaded >= p.total {
				loaded = p.total - 1
			}
			p.fn(loaded, p.total)
		}
	}
	return n, err
}
