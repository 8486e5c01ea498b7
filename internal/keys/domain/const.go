package domain

// Algorithm represents the cryptographic algorithm used for encryption.
//
// All supported algorithms provide Authenticated Encryption with Associated
// Data (AEAD), ensuring both confidentiality and authenticity. Use AESGCM on
// CPUs with AES-NI acceleration, ChaCha20 elsewhere; both give 256-bit keys.
type Algorithm string

const (
	// AESGCM represents the AES-256-GCM authenticated encryption algorithm.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents the ChaCha20-Poly1305 authenticated encryption algorithm.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// DefaultAlgorithm is used when a key is lazily created on first use.
const DefaultAlgorithm = AESGCM

// KeySize is the size of every DEK and the master key in bytes.
const KeySize = 32
