package chain

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var errInvalidKey = errors.New("invalid platform private key")

// ParsePrivateKey decodes the funding key from either a JSON array of 64
// byte values (the CLI keypair file format) or a base58 string. Errors never
// include the key material.
func ParsePrivateKey(secret string) (solana.PrivateKey, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: empty", errInvalidKey)
	}

	if strings.HasPrefix(secret, "[") {
		var values []int
		if err := json.Unmarshal([]byte(secret), &values); err != nil {
			return nil, fmt.Errorf("%w: malformed byte array", errInvalidKey)
		}
		if len(values) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: expected %d bytes, got %d", errInvalidKey, ed25519.PrivateKeySize, len(values))
		}
		key := make(solana.PrivateKey, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: byte %d out of range", errInvalidKey, i)
			}
			key[i] = byte(v)
		}
		return key, nil
	}

	key, err := solana.PrivateKeyFromBase58(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: not base58", errInvalidKey)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", errInvalidKey, ed25519.PrivateKeySize, len(key))
	}
	return key, nil
}
