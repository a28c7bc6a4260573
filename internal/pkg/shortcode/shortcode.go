package shortcode

import (
	"crypto/rand"
	"fmt"
)

// Upper-case letters and digits without 0, O, 1 and I, so codes survive being
// read aloud or typed from a printed translation.
const alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// VerificationCodeLength is the length of the code stamped on every document.
const VerificationCodeLength = 8

// Generate returns a cryptographically random code of the given length.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length: %d", length)
	}

	// Rejection sampling avoids modulo bias. 224 is the largest multiple of
	// 32 below 256.
	const maxRandomByte = 224

	code := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			code[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(code), nil
}

// VerificationCode returns a fresh document verification code.
func VerificationCode() (string, error) {
	return Generate(VerificationCodeLength)
}

// Valid reports whether code only uses characters Generate can produce.
func Valid(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !inAlphabet(code[i]) {
			return false
		}
	}
	return true
}

func inAlphabet(c byte) bool {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return true
		}
	}
	return false
}
