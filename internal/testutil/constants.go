package testutil

// Test key material for use in tests only. 32 bytes for secretbox / HMAC.
const (
	TestSessionKey = "12345678901234567890123456789012"
	TestSigningKey = "test-signing-key-1234567890123456"
)
