package subscriber

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
)

// NewHasher maps an X-Hub-Signature algorithm name to a hash constructor.
// The name arrives on the wire, so an unknown value is an error rather
// than a panic.
func NewHasher(algorithm string) (func() hash.Hash, error) {
	switch algorithm {
	case "sha1":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	case "sha384":
		return sha512.New384, nil
	case "sha512":
		return sha512.New, nil
	}

	return nil, fmt.Errorf("unsupported signature algorithm: %s", algorithm)
}
