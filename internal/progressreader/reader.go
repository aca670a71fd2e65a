// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

/*
Package progressreader wraps an io.Reader so that every Read call that
returns data reports bytes transferred so far on a progressbus.Bus, and Close reports one final
tick with the terminal byte count — mirroring a reader whose destructor
always emits a last progress update no matter how the read loop ended.
*/
package progressreader

import (
	"io"
	"sync/atomic"

	"github.com/tomtom215/vaultkeep/internal/backup"
	"github.com/tomtom215/vaultkeep/internal/progressbus"
)

// Reader wraps an underlying io.ReadCloser and emits a KindFileProgress
// event after each Read that returns data and once more on Close, using template as the
// fixed fields (backup, library, file, id, name, size) of every emitted
// BackupFileProgress.
type Reader struct {
	inner     io.ReadCloser
	bus       *progressbus.Bus
	template  backup.BackupFileProgress
	bytesRead int64
	closed    atomic.Bool
}

// New wraps r. template.Progress and template.Status are overwritten on
// every emitted event; callers should leave them at their zero value.
func New(r io.ReadCloser, bus *progressbus.Bus, template backup.BackupFileProgress) *Reader {
	return &Reader{inner: r, bus: bus, template: template}
}

func (p *Reader) Read(b []byte) (int, error) {
	n, err := p.inner.Read(b)
	if n > 0 {
		total := atomic.AddInt64(&p.bytesRead, int64(n))
		p.emit(uint64(total), backup.FileTransferring, nil)
	}
	return n, err
}

// Close releases the underlying reader and emits one final progress tick
// reflecting the total bytes read, regardless of whether the transfer
// completed or was cut short. It is safe to call Close more than once;
// only the first call emits.
func (p *Reader) Close() error {
	err := p.inner.Close()
	if p.closed.CompareAndSwap(false, true) {
		total := uint64(atomic.LoadInt64(&p.bytesRead))
		status := backup.FileDone
		var errMsg *string
		if err != nil {
			status = backup.FileError
			msg := err.Error()
			errMsg = &msg
		}
		p.emit(total, status, errMsg)
	}
	return err
}

func (p *Reader) emit(progress uint64, status backup.FileProgressStatus, errMsg *string) {
	if p.bus == nil {
		return
	}
	evt := p.template
	evt.Progress = progress
	evt.Status = status
	evt.Error = errMsg
	p.bus.Publish(progressbus.Event{Kind: progressbus.KindFileProgress, File: evt})
}
