package auth

import "testing"

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("SecureAdmin2025")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "SecureAdmin2025" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if err := VerifyPassword(hash, "SecureAdmin2025"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatalf("wrong password must not verify")
	}
}
