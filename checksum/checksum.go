// Package checksum computes request and response payload checksums as body
// callbacks, and frames streaming request bodies with checksum trailers.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"hash/crc32"
	"strings"
)

// Algorithm identifies a checksum algorithm.
type Algorithm string

// Supported algorithms.
const (
	CRC32  Algorithm = "crc32"
	CRC32C Algorithm = "crc32c"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	MD5    Algorithm = "md5"
)

// Header names carrying checksums.
const (
	HeaderCRC32  = "x-amz-checksum-crc32"
	HeaderCRC32C = "x-amz-checksum-crc32c"
	HeaderSHA1   = "x-amz-checksum-sha1"
	HeaderSHA256 = "x-amz-checksum-sha256"
	HeaderMD5    = "content-md5"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Algorithms lists algorithms in response validation priority order.
var Algorithms = []Algorithm{CRC32C, CRC32, SHA1, SHA256, MD5}

// ParseAlgorithm parses a case-insensitive algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(name))); a {
	case CRC32, CRC32C, SHA1, SHA256, MD5:
		return a, nil
	default:
		return "", fmt.Errorf("checksum: unsupported algorithm %q", name)
	}
}

// HeaderName returns the header or trailer name for the algorithm.
func (a Algorithm) HeaderName() string {
	switch a {
	case CRC32:
		return HeaderCRC32
	case CRC32C:
		return HeaderCRC32C
	case SHA1:
		return HeaderSHA1
	case SHA256:
		return HeaderSHA256
	case MD5:
		return HeaderMD5
	}
	return ""
}

// DigestSize returns the raw digest length in bytes.
func (a Algorithm) DigestSize() int {
	switch a {
	case CRC32, CRC32C:
		return crc32.Size
	case SHA1:
		return sha1.Size
	case SHA256:
		return sha256.Size
	case MD5:
		return md5.Size
	}
	return 0
}

// TrailerSize is the encoded size of the "name:value" trailer for the
// algorithm: len(name) + 1 + base64 length of the digest.
func (a Algorithm) TrailerSize() int {
	return len(a.HeaderName()) + 1 + base64.StdEncoding.EncodedLen(a.DigestSize())
}

// New returns a fresh checksum for the algorithm.
func (a Algorithm) New() Checksum {
	var h hash.Hash
	switch a {
	case CRC32:
		h = crc32.NewIEEE()
	case CRC32C:
		h = crc32.New(castagnoli)
	case SHA1:
		h = sha1.New()
	case SHA256:
		h = sha256.New()
	case MD5:
		h = md5.New()
	default:
		panic(fmt.Sprintf("checksum: unknown algorithm %q", string(a)))
	}
	return &checksum{alg: a, h: h}
}

// Checksum is a running payload checksum.
type Checksum interface {
	Update(p []byte)
	Finalize() []byte
	Algorithm() Algorithm
	HeaderName() string
	HeaderValue() string
	Size() int
}

type checksum struct {
	alg Algorithm
	h   hash.Hash
}

func (c *checksum) Update(p []byte) { c.h.Write(p) }

func (c *checksum) Finalize() []byte { return c.h.Sum(nil) }

func (c *checksum) Algorithm() Algorithm { return c.alg }

func (c *checksum) HeaderName() string { return c.alg.HeaderName() }

func (c *checksum) HeaderValue() string {
	return base64.StdEncoding.EncodeToString(c.Finalize())
}

func (c *checksum) Size() int { return c.alg.TrailerSize() }

// Sum computes the base64 checksum of data in one call.
func Sum(alg Algorithm, data []byte) string {
	c := alg.New()
	c.Update(data)
	return c.HeaderValue()
}
