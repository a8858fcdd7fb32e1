package wiring

import "crypto/rand"

// GetRandomValues fills p with cryptographically random bytes, backing the
// guest's crypto.getRandomValues. The caller must have already checked
// ValidateRandomLength(len(p)).
func GetRandomValues(p []byte) error {
	_, err := rand.Read(p)
	return err
}
