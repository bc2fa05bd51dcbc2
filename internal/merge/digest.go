package merge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names a content digest function.
type Algorithm string

const (
	BLAKE2b Algorithm = "blake2b"
	BLAKE3  Algorithm = "blake3"
	SHA256  Algorithm = "sha256"
	// XXHash is fast but not collision resistant; two different files
	// sharing a 64-bit sum would be merged as one.
	XXHash Algorithm = "xxhash"
)

// Algorithms lists the supported digest algorithms, default first.
var Algorithms = []Algorithm{BLAKE2b, BLAKE3, SHA256, XXHash}

// MaxDigestSize is the largest sum any supported algorithm produces.
const MaxDigestSize = blake2b.Size

// Digest is the content hash of one file. It is comparable and used directly
// as a map key; digests from different algorithms never meet in one run.
type Digest struct {
	sum  [MaxDigestSize]byte
	size uint8
}

// DigestOf wraps a raw sum. Sums longer than MaxDigestSize are truncated.
func DigestOf(sum []byte) Digest {
	var d Digest
	d.size = uint8(copy(d.sum[:], sum))
	return d
}

// Bytes returns the significant bytes of the digest.
func (d Digest) Bytes() []byte {
	return d.sum[:d.size]
}

func (d Digest) String() string {
	return hex.EncodeToString(d.Bytes())
}

// ParseAlgorithm resolves a user supplied algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if alg == "" {
		return BLAKE2b, nil
	}
	for _, known := range Algorithms {
		if alg == known {
			return alg, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// NewHash returns a fresh hash.Hash for alg.
func NewHash(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case BLAKE2b, "":
		return blake2b.New512(nil)
	case BLAKE3:
		return blake3.New(), nil
	case SHA256:
		return sha256.New(), nil
	case XXHash:
		return xxhash.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
	}
}

// DigestFile streams the file at path through h using buf as the copy
// buffer. h is reset first so a worker can reuse one hasher for every file.
func DigestFile(path string, h hash.Hash, buf []byte) (Digest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Digest{}, err
	}
	if info.IsDir() {
		return Digest{}, ErrExpectedFile
	}

	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	h.Reset()
	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	var scratch [MaxDigestSize]byte
	return DigestOf(h.Sum(scratch[:0])), nil
}
