package bridge

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Fingerprint returns the hex SHA-256 digest of arbitrary content. It is used
// for deduplication and idempotency markers, never for authentication.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// DedupKey derives the dedup ledger key for an inbound mailbox entry from its
// storage content identifier (blob SHA). A byte-identical re-delivery keeps
// the same key; a freshly written copy of the same text gets a new one.
func DedupKey(blobSHA string) string {
	return "msg:" + Fingerprint([]byte(blobSHA))
}

// PullDedupKey keys a pull request subject by number for the poller seen-set.
func PullDedupKey(number int) string {
	return "pr:" + strconv.Itoa(number)
}
