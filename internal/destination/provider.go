// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

/*
Package destination defines the Destination Provider contract: the
pluggable backend a backup writes ciphertext to and reads it back from
(local filesystem, object storage, a remote archive node, ...).

Concrete providers register themselves with Register under a tag at
package init time; the engine resolves a Backup's configured destination
by tag through Open, never by importing a concrete provider package
directly. This keeps the engine's dependency graph one-directional: the
engine never needs to know which providers are compiled in.
*/
package destination

import (
	"context"
	"io"
)

// SourceKind discriminates the two shapes a read can come back as.
type SourceKind int

const (
	// SourceKindStream means the data is available directly as a Reader.
	SourceKindStream SourceKind = iota
	// SourceKindDeferred means the caller must issue a separate fetch
	// (e.g. a presigned URL or a range request) described by Request.
	SourceKindDeferred
)

// SourceRead is the sum type returned by OpenRead: either a ready stream
// or a descriptor for a request the caller must make itself.
type SourceRead struct {
	Kind    SourceKind
	Stream  io.ReadCloser
	Request *DeferredRequest
}

// DeferredRequest describes an out-of-band fetch a caller must perform
// when a provider cannot hand back a direct stream (for example, a
// provider whose backend only supports presigned HTTP URLs).
type DeferredRequest struct {
	Method  string
	URL     string
	Headers map[string]string
}

// Info is the subset of a destination object's metadata a provider can
// report without a full read.
type Info struct {
	Size    int64
	Exists  bool
	ModTime int64  // unix millis, 0 if unknown
	Hash    string // md5 of the ciphertext as observed by the destination, hex-encoded
}

// Provider is the contract every backup destination backend implements.
// All methods take a context and must respect cancellation; no method may
// hold a provider-wide lock across a call that does I/O.
type Provider interface {
	// OpenWrite returns a writer that streams ciphertext to path,
	// creating any intermediate structure the backend needs.
	// expectedSize and mime are optional hints a backend may use to set
	// a content-length or content-type up front; either may be nil when
	// the caller cannot produce the hint.
	OpenWrite(ctx context.Context, path string, expectedSize *int64, mime *string) (io.WriteCloser, error)

	// OpenRead returns the ciphertext stream for path, or a deferred
	// fetch descriptor when the backend cannot stream directly.
	OpenRead(ctx context.Context, path string) (SourceRead, error)

	// Remove deletes the object at path. Removing an object that does
	// not exist is not an error.
	Remove(ctx context.Context, path string) error

	// FillInfo reports size/existence/mtime and the md5 Hash for path.
	// Computing Hash may read the object's contents; PathProvider does.
	FillInfo(ctx context.Context, path string) (Info, error)
}

// Factory constructs a Provider from backend-specific configuration
// (connection string, root path, credentials handle, ...) opaque to the
// engine.
type Factory func(config map[string]string) (Provider, error)
