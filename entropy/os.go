package entropy

import (
	"context"
	"crypto/rand"
	"fmt"
)

// osRounds * 32 bytes per fetch, enough for one whitening batch.
const osRounds = 16

type osSource struct{}

func init() {
	registerSource(&osSource{})
}

func (s *osSource) Name() string {
	return "os"
}

func (s *osSource) Local() bool {
	return true
}

func (s *osSource) Fetch(ctx context.Context) ([]byte, error) {
	payload := make([]byte, osRounds*32)
	n, err := rand.Read(payload)
	if err != nil {
		return nil, fmt.Errorf("could not read entropy from os: %w", err)
	}
	if n != len(payload) {
		return nil, fmt.Errorf("could not read enough entropy from os: got only %d bytes instead of %d", n, len(payload))
	}
	return payload, nil
}
