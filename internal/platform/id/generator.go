package id

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates opaque ids for run reports and audit entries.
type Generator interface {
	NewID() (string, error)
}

// UUIDGenerator issues random UUIDv4 strings.
type UUIDGenerator struct{}

func NewRandomGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return u.String(), nil
}
