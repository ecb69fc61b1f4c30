// Package httpsig implements the HTTP Signature scheme as defined in draft-cavage-http-signatures-10.
package httpsig

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// RequestTarget is the pseudo-header used to sign the request target.
	RequestTarget = "(request-target)"
)

// Sign signs the request using the given keyID and privateKey.
// Requests with a body sign (request-target), host, date and digest;
// requests without a body omit the digest header and its entry in the
// signed header set. Both forms are produced by real peers, so both
// must remain verifiable.
func Sign(req *http.Request, keyID string, privateKey crypto.PrivateKey, body []byte) error {
	req.Header.Set("Date", time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")) // Date must be in GMT, not UTC 🤯
	headersToSign := []string{RequestTarget, "host", "date"}
	if len(body) > 0 {
		req.Header.Set("Digest", Digest(body))
		headersToSign = append(headersToSign, "digest")
	}

	input, err := signingString(req, headersToSign)
	if err != nil {
		return err
	}

	rsaKey, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("httpsig: expected *rsa.PrivateKey, got %T", privateKey)
	}
	hashed := sha256.Sum256([]byte(input))
	sig, err := rsa.SignPKCS1v15(rand.Reader, rsaKey, crypto.SHA256, hashed[:])
	if err != nil {
		return err
	}
	enc := base64.StdEncoding.EncodeToString(sig)
	req.Header.Set("Signature", fmt.Sprintf(`keyId="%s",algorithm="rsa-sha256",headers="%s",signature="%s"`, keyID, strings.Join(headersToSign, " "), enc))
	return nil
}

// Digest returns the Digest header value for body.
func Digest(body []byte) string {
	hash := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(hash[:])
}

// signingString builds the newline-joined canonical string for the given
// header names, in the order given. Every named header must be present on
// the request; a missing header is an error, not an omission.
func signingString(req *http.Request, headers []string) (string, error) {
	var sb bytes.Buffer
	for i, header := range headers {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch strings.ToLower(header) {
		case RequestTarget:
			sb.WriteString("(request-target): ")
			sb.WriteString(strings.ToLower(req.Method))
			sb.WriteString(" ")
			sb.WriteString(req.URL.Path)
			if req.URL.RawQuery != "" {
				sb.WriteString("?")
				sb.WriteString(req.URL.RawQuery)
			}
		case "host":
			host := req.Host
			if host == "" {
				host = req.Header.Get("Host")
			}
			if host == "" {
				return "", fmt.Errorf("httpsig: missing signed header %q", header)
			}
			sb.WriteString("host: ")
			sb.WriteString(host)
		default:
			value := req.Header.Get(header)
			if value == "" {
				return "", fmt.Errorf("httpsig: missing signed header %q", header)
			}
			sb.WriteString(strings.ToLower(header))
			sb.WriteString(": ")
			sb.WriteString(value)
		}
	}
	return sb.String(), nil
}
