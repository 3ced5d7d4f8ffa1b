package connectors

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"
	"time"
)

// verifyHexHMAC checks a lowercase/uppercase hex HMAC signature against the
// payload in constant time.
func verifyHexHMAC(payload []byte, signatureHex, secret string, hashFunc func() hash.Hash) bool {
	sig := strings.TrimSpace(signatureHex)
	if sig == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	mac := hmac.New(hashFunc, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}

const stripeSignatureTolerance = 5 * time.Minute

// verifyStripeSignature implements the `t=...,v1=...` signed-payload scheme:
// v1 is HMAC-SHA256 over "<t>.<body>" and t must be within tolerance of now.
func verifyStripeSignature(payload []byte, header, secret string, now time.Time) bool {
	if strings.TrimSpace(header) == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	var ts string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if ts == "" || len(candidates) == 0 {
		return false
	}

	tsInt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(tsInt, 0))
	if age > stripeSignatureTolerance || age < -stripeSignatureTolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		decoded, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(candidate)))
		if err != nil {
			continue
		}
		if hmac.Equal(expected, decoded) {
			return true
		}
	}
	return false
}
