package client

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/backfarm/poolbot/backpack/types"
)

// signer derives per-request Ed25519 signatures over the exchange's canonical
// parameter encoding. Pure: same inputs always produce the same signature.
type signer struct {
	priv   ed25519.PrivateKey
	window int64
}

func newSigner(apiSecret string, window int64) (*signer, error) {
	seed, err := base64.StdEncoding.DecodeString(apiSecret)
	if err != nil {
		return nil, types.NewError(types.KindInvalidKeyMaterial,
			"api secret is not valid base64: %v", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, types.NewError(types.KindInvalidKeyMaterial,
			"api secret decodes to %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &signer{priv: ed25519.NewKeyFromSeed(seed), window: window}, nil
}

// Sign builds and signs the canonical string
//
//	instruction=<name>[&k1=v1&k2=v2...]&timestamp=<ts>&window=<window>
//
// with keys sorted lexicographically and booleans rendered lowercase. Any
// deviation from this encoding invalidates the signature on the exchange
// side. Returns the base64-encoded signature.
func (s *signer) Sign(instruction string, timestampMillis int64, params map[string]any) string {
	var b strings.Builder
	b.WriteString("instruction=")
	b.WriteString(instruction)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('&')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(renderParam(params[k]))
	}

	fmt.Fprintf(&b, "&timestamp=%d&window=%d", timestampMillis, s.window)

	sig := ed25519.Sign(s.priv, []byte(b.String()))
	return base64.StdEncoding.EncodeToString(sig)
}

// renderParam renders a parameter value the way the exchange canonicalizes
// it: booleans lowercase, everything else in its natural decimal form.
func renderParam(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "true"
		}
		return "false"
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
