package ddiclient

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/url"
	"os"
)

// HashAlgorithm selects which of an artifact's advertised hashes to verify
// against. Verification is offered, never enforced automatically (spec.md
// §9 Open Question (a)): the handler decides whether and when to call it.
type HashAlgorithm int

const (
	HashMD5 HashAlgorithm = iota
	HashSHA1
	HashSHA256
)

func (a *Artifact) expectedHash(algo HashAlgorithm) (string, hash.Hash) {
	switch algo {
	case HashMD5:
		return a.Hashes.MD5, md5.New()
	case HashSHA1:
		return a.Hashes.SHA1, sha1.New()
	default:
		return a.Hashes.SHA256, sha256.New()
	}
}

// downloadURI resolves the artifact's download link, preferring the TLS
// variant when the controller's base URI is itself TLS (spec.md §4.3).
func (a *Artifact) downloadURI(base *url.URL) (*url.URL, error) {
	preferTLS := base.Scheme == "https"

	pick := a.links.DownloadHTTP
	if preferTLS && a.links.Download != nil {
		pick = a.links.Download
	}
	if pick == nil {
		pick = a.links.Download
	}
	if pick == nil {
		pick = a.links.DownloadHTTP
	}
	if pick == nil {
		return nil, fmt.Errorf("ddiclient: artifact %q has no download link", a.Filename)
	}
	return resolveHref(base, pick.Href)
}

// DownloadTo streams the artifact's bytes into the file at path, creating
// or truncating it. It uses the same auth/TLS configuration as the
// controller's polling requests (spec.md §4.3).
func (a *Artifact) DownloadTo(ctx context.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ddiclient: create %s: %w", path, err)
	}
	defer f.Close()
	return a.DownloadWithReceiver(ctx, func(chunk []byte) error {
		_, err := f.Write(chunk)
		return err
	})
}

// DownloadWithReceiver streams the artifact's bytes to fn as they arrive,
// without buffering the full artifact, so callers can hash or inspect bytes
// incrementally (spec.md §9 design notes).
func (a *Artifact) DownloadWithReceiver(ctx context.Context, fn func(chunk []byte) error) error {
	target, err := a.downloadURI(a.base.resolvedBase)
	if err != nil {
		return err
	}

	stream, err := a.client.state.streamGet(ctx, target)
	if err != nil {
		return err
	}
	defer stream.Close()

	buf := make([]byte, 32*1024)
	for {
		n, readErr := stream.Read(buf)
		if n > 0 {
			if err := fn(buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("ddiclient: streaming %s: %w", a.Filename, readErr)
		}
	}
}

// Verify downloads-independent hash check: it reads the file back from disk
// and compares its digest against the artifact's advertised hash. It is a
// capability the handler may call; the core never calls it automatically.
func (a *Artifact) Verify(path string, algo HashAlgorithm) (bool, error) {
	expected, h := a.expectedHash(algo)
	if expected == "" {
		return false, fmt.Errorf("ddiclient: artifact %q has no advertised hash for requested algorithm", a.Filename)
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return hex.EncodeToString(h.Sum(nil)) == expected, nil
}
