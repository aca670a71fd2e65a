// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package destination

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PathProviderTag is the registry tag for the local filesystem provider.
const PathProviderTag = "path"

func init() {
	Register(PathProviderTag, func(config map[string]string) (Provider, error) {
		root, ok := config["root"]
		if !ok || root == "" {
			return nil, fmt.Errorf("destination %q: missing required %q config key", PathProviderTag, "root")
		}
		return NewPathProvider(root), nil
	})
}

// PathProvider implements Provider against a root directory on the local
// filesystem. Every path is joined under root and cleaned; callers are
// trusted to pass relative object paths, since PathProvider itself has no
// notion of which backup a path belongs to.
type PathProvider struct {
	root string
}

// NewPathProvider constructs a PathProvider rooted at root.
func NewPathProvider(root string) *PathProvider {
	return &PathProvider{root: root}
}

func (p *PathProvider) resolve(path string) string {
	return filepath.Join(p.root, filepath.Clean(string(filepath.Separator)+path))
}

// OpenWrite creates path, ignoring the expectedSize/mime hints: a local
// filesystem has no content-length header or content-type to prime.
func (p *PathProvider) OpenWrite(_ context.Context, path string, _ *int64, _ *string) (io.WriteCloser, error) {
	full := p.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create destination directory: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("create destination file: %w", err)
	}
	return &bufferedWriteCloser{w: bufio.NewWriter(f), f: f}, nil
}

func (p *PathProvider) OpenRead(_ context.Context, path string) (SourceRead, error) {
	f, err := os.Open(p.resolve(path))
	if err != nil {
		return SourceRead{}, fmt.Errorf("open destination file: %w", err)
	}
	return SourceRead{Kind: SourceKindStream, Stream: f}, nil
}

func (p *PathProvider) Remove(_ context.Context, path string) error {
	err := os.Remove(p.resolve(path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove destination file: %w", err)
	}
	return nil
}

func (p *PathProvider) FillInfo(_ context.Context, path string) (Info, error) {
	full := p.resolve(path)
	st, err := os.Stat(full)
	if os.IsNotExist(err) {
		return Info{Exists: false}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("stat destination file: %w", err)
	}

	f, err := os.Open(full)
	if err != nil {
		return Info{}, fmt.Errorf("open destination file for hashing: %w", err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return Info{}, fmt.Errorf("hash destination file: %w", err)
	}

	return Info{
		Size:    st.Size(),
		Exists:  true,
		ModTime: st.ModTime().UnixMilli(),
		Hash:    hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// bufferedWriteCloser flushes its bufio.Writer before closing the
// underlying file, so a caller that only calls Close (never Flush) still
// gets every byte persisted.
type bufferedWriteCloser struct {
	w *bufio.Writer
	f *os.File
}

func (b *bufferedWriteCloser) Write(p []byte) (int, error) {
	return b.w.Write(p)
}

func (b *bufferedWriteCloser) Close() error {
	if err := b.w.Flush(); err != nil {
		b.f.Close()
		return fmt.Errorf("flush destination file: %w", err)
	}
	return b.f.Close()
}
