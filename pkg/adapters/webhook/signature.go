package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	HeaderSignature = "X-Waypoint-Signature"
	HeaderTimestamp = "X-Waypoint-Timestamp"
	HeaderDelivery  = "X-Waypoint-Delivery"
)

// Sign computes HMAC-SHA256(secret, timestamp + "." + payload) as hex.
func Sign(secret string, timestamp int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write([]byte("."))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks a signature produced by Sign. A positive maxAge also rejects stale
// or far-future timestamps.
func Verify(secret string, payload []byte, signature string, timestamp int64, maxAge time.Duration) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if maxAge > 0 {
		age := time.Since(time.Unix(timestamp, 0))
		if age > maxAge || age < -time.Minute {
			return fmt.Errorf("%w: signature timestamp out of range", ErrInvalidConfiguration)
		}
	}
	want := Sign(secret, timestamp, payload)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidConfiguration)
	}
	return nil
}
