package unifs

import (
	"context"
	"crypto/md5"  //nolint:gosec // integrity check only
	"crypto/sha1" //nolint:gosec // integrity check only
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"hash/crc32"
	"slices"
	"strings"

	"emperror.dev/errors"
	"github.com/cespare/xxhash/v2"
)

// ChecksumAlgorithm names a hash accepted by Checksum.
type ChecksumAlgorithm string

// Supported checksum algorithms. MD5, SHA-1, CRC32 and xxHash only detect
// corruption.
const (
	ChecksumMD5    ChecksumAlgorithm = "md5"
	ChecksumSHA1   ChecksumAlgorithm = "sha1"
	ChecksumSHA256 ChecksumAlgorithm = "sha256"
	ChecksumSHA512 ChecksumAlgorithm = "sha512"
	ChecksumCRC32  ChecksumAlgorithm = "crc32"
	ChecksumXXHash ChecksumAlgorithm = "xxhash"
)

var hashes = map[ChecksumAlgorithm]func() hash.Hash{
	ChecksumMD5:    md5.New,  //nolint:gosec
	ChecksumSHA1:   sha1.New, //nolint:gosec
	ChecksumSHA256: sha256.New,
	ChecksumSHA512: sha512.New,
	ChecksumCRC32:  func() hash.Hash { return crc32.NewIEEE() },
	ChecksumXXHash: func() hash.Hash { return xxhash.New() },
}

// ChecksumAlgorithms returns the supported algorithms sorted by name.
func ChecksumAlgorithms() []ChecksumAlgorithm {
	algorithms := make([]ChecksumAlgorithm, 0, len(hashes))
	for a := range hashes {
		algorithms = append(algorithms, a)
	}
	slices.Sort(algorithms)
	return algorithms
}

// Checksums reads f once through its backend and returns the hex-encoded
// sum for each algorithm. SHA-256 is used when none is given. Unknown
// algorithms fail with ErrNotSupported before f is read.
func Checksums(ctx context.Context, f File, algorithms ...ChecksumAlgorithm) (map[ChecksumAlgorithm]string, error) {
	if len(algorithms) == 0 {
		algorithms = []ChecksumAlgorithm{ChecksumSHA256}
	}

	hashers := make(map[ChecksumAlgorithm]hash.Hash, len(algorithms))
	for _, a := range algorithms {
		newHash, ok := hashes[ChecksumAlgorithm(strings.ToLower(string(a)))]
		if !ok {
			return nil, NewPathError("checksum", f.FullName(), errors.Wrapf(ErrNotSupported, "checksum algorithm %q", a))
		}
		hashers[a] = newHash()
	}

	data, err := f.ReadBinary(ctx)
	if err != nil {
		return nil, err
	}

	sums := make(map[ChecksumAlgorithm]string, len(hashers))
	for a, h := range hashers {
		h.Write(data)
		sums[a] = hex.EncodeToString(h.Sum(nil))
	}
	return sums, nil
}

// Checksum returns the hex-encoded sum of f. Works on every backend since it
// only needs ReadBinary.
func Checksum(ctx context.Context, f File, algorithm ChecksumAlgorithm) (string, error) {
	sums, err := Checksums(ctx, f, algorithm)
	if err != nil {
		return "", err
	}
	return sums[algorithm], nil
}

// VerifyChecksum reports whether the sum of f equals expected, ignoring case.
func VerifyChecksum(ctx context.Context, f File, expected string, algorithm ChecksumAlgorithm) (bool, error) {
	actual, err := Checksum(ctx, f, algorithm)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, expected), nil
}
