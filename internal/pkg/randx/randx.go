/*
Package randx provides functions for generating cryptographically secure random identifiers.

It is primarily used to generate correlation tags for directory-service requests
and standard UUID session identities.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// TagLength is the fixed length of a directory-request correlation tag.
	TagLength = 12
)

// Tag generates a Base62 encoded correlation tag using a cryptographically secure
// random number generator (crypto/rand). It returns a string of length TagLength
// and any error encountered.
func Tag() (string, error) {
	result := make([]byte, TagLength)

	for i := 0; i < TagLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for tag: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// SessionID generates a standard UUID v4 to serve as a process-unique session identity.
func SessionID() uuid.UUID {
	return uuid.New()
}
