package httpsig

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// KeyFunc resolves a keyId, conventionally "<actor-uri>#main-key", to the
// signer's public key.
type KeyFunc func(keyID string) (crypto.PublicKey, error)

// Verify verifies the Signature header on req. The canonical string is
// rebuilt from the header names listed in the signature's own headers
// field, not a fixed list; peers may sign a subset or superset. A header
// the signature claims to cover but which is absent from the request is a
// hard rejection, since silently dropping it would let an attacker strip
// signed headers. Malformed signatures return an error with a readable
// reason; they are an expected failure mode, not a panic.
func Verify(req *http.Request, body []byte, keyFn KeyFunc) error {
	sigHeader := req.Header.Get("Signature")
	if sigHeader == "" {
		return errors.New("httpsig: signature header is missing")
	}

	params := parseSignatureHeader(sigHeader)
	keyID := params["keyId"]
	signature := params["signature"]
	if keyID == "" || signature == "" {
		return errors.New("httpsig: invalid signature header")
	}

	// Per draft-cavage the default signed header set is just "date".
	headers := []string{"date"}
	if h := params["headers"]; h != "" {
		headers = strings.Fields(h)
	}

	if hasHeader(headers, "digest") {
		if err := checkDigest(req.Header.Get("Digest"), body); err != nil {
			return err
		}
	}

	input, err := signingString(req, headers)
	if err != nil {
		return err
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("httpsig: signature is not valid base64: %w", err)
	}

	pubKey, err := keyFn(keyID)
	if err != nil {
		return fmt.Errorf("httpsig: cannot resolve key %q: %w", keyID, err)
	}
	rsaKey, ok := pubKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("httpsig: expected *rsa.PublicKey, got %T", pubKey)
	}

	hashed := sha256.Sum256([]byte(input))
	if err := rsa.VerifyPKCS1v15(rsaKey, crypto.SHA256, hashed[:], sig); err != nil {
		return errors.New("httpsig: invalid signature")
	}
	return nil
}

// parseSignatureHeader splits the comma-separated key="value" pairs of a
// Signature header. Unrecognised parameters such as created or expires
// are retained but otherwise ignored.
func parseSignatureHeader(header string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		params[k] = strings.Trim(v, `"`)
	}
	return params
}

func hasHeader(headers []string, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// checkDigest recomputes the body digest and compares it to the claimed
// Digest header. A signature that covers the digest header proves nothing
// about the body unless the digest itself matches.
func checkDigest(claimed string, body []byte) error {
	if claimed == "" {
		return errors.New("httpsig: signature covers digest but request has no digest header")
	}
	if subtle.ConstantTimeCompare([]byte(claimed), []byte(Digest(body))) != 1 {
		return errors.New("httpsig: digest mismatch")
	}
	return nil
}
