package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const sessionTokenBytes = 16

// RandomTokenGenerator reads session tokens from Reader (crypto/rand when nil).
type RandomTokenGenerator struct {
	Reader io.Reader
}

// NewToken returns 16 random bytes hex-encoded to 32 characters.
func (g RandomTokenGenerator) NewToken() (string, error) {
	r := g.Reader
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, sessionTokenBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewWorkerID builds a unique identifier based on hostname, pid, and random suffix.
func NewWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), randomHex(6))
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		for i := range b {
			b[i] = byte(i + 1)
		}
	}
	return hex.EncodeToString(b)
}
