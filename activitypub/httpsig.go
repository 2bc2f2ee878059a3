package activitypub

import (
	"crypto/rsa"
	"fmt"
	"net/http"

	"github.com/go-fed/httpsig"
)

var signedHeaders = []string{httpsig.RequestTarget, "host", "date", "digest"}

// SignRequest signs an outgoing HTTP request with the given private key and sets the
// Digest header for body.
// keyId format: "https://example.com/authors/<id>#main-key"
func SignRequest(req *http.Request, privateKey *rsa.PrivateKey, keyId string, body []byte) error {
	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		signedHeaders,
		httpsig.Signature,
		0,
	)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}
	if req.Header.Get("Host") == "" {
		req.Header.Set("Host", req.URL.Host)
	}
	return signer.SignRequest(privateKey, keyId, req, body)
}

// KeyID is the key identifier published for an author's signing key.
func KeyID(authorURL string) string {
	return authorURL + "#main-key"
}
