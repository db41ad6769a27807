package canonical

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	dErrors "veritas/pkg/domain-errors"
)

// Algorithm selects the digest function. The string values are part of the
// wire contract.
type Algorithm string

const (
	AlgorithmSHA256    Algorithm = "sha256"
	AlgorithmKeccak256 Algorithm = "keccak256"
)

// ParseAlgorithm validates a wire algorithm identifier. An empty string
// selects sha256.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "", string(AlgorithmSHA256):
		return AlgorithmSHA256, nil
	case string(AlgorithmKeccak256):
		return AlgorithmKeccak256, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown hash algorithm: "+s)
	}
}

// Hash canonicalizes the payload under the given mode and digests it with
// the given algorithm. The digest is hex-encoded without a prefix.
func Hash(payload map[string]any, alg Algorithm, mode Mode) (string, error) {
	serialized, err := Canonicalize(payload, mode)
	if err != nil {
		return "", err
	}
	return Digest([]byte(serialized), alg)
}

// Digest hashes raw bytes with the given algorithm, hex-encoded.
// Merkle node pairing and replay fingerprints use this directly.
func Digest(data []byte, alg Algorithm) (string, error) {
	switch alg {
	case AlgorithmSHA256:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case AlgorithmKeccak256:
		h := sha3.NewLegacyKeccak256()
		h.Write(data)
		return hex.EncodeToString(h.Sum(nil)), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown hash algorithm: "+string(alg))
	}
}

// DigestRaw is Digest for callers that need the raw digest bytes, such as
// merkle tree construction where parents hash the concatenated child bytes.
func DigestRaw(data []byte, alg Algorithm) ([]byte, error) {
	switch alg {
	case AlgorithmSHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case AlgorithmKeccak256:
		h := sha3.NewLegacyKeccak256()
		h.Write(data)
		return h.Sum(nil), nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown hash algorithm: "+string(alg))
	}
}
