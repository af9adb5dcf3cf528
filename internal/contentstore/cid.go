package contentstore

import (
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// ComputeCID returns the CIDv1 (raw codec, sha2-256 multihash) of data in
// its default base32 form, e.g. "bafkrei...". This matches what an IPFS node
// returns for a single raw-leaf block.
func ComputeCID(data []byte) (string, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

// ValidCID reports whether s parses as a CID (v0 or v1).
func ValidCID(s string) bool {
	_, err := cid.Decode(s)
	return err == nil
}
