package utils

import (
	"testing"
)

func TestGenerateAndValidateRoomToken(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateRoomToken("abcd", secret)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateRoomToken(token, secret)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.RoomID != "abcd" {
		t.Fatalf("expected roomId abcd, got %q", claims.RoomID)
	}
}

func TestValidateRoomTokenWrongSecret(t *testing.T) {
	token, err := GenerateRoomToken("abcd", []byte("secret-a"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ValidateRoomToken(token, []byte("secret-b")); err == nil {
		t.Fatal("token signed with another secret must not validate")
	}
}

func TestValidateRoomTokenGarbage(t *testing.T) {
	if _, err := ValidateRoomToken("not.a.token", []byte("x")); err == nil {
		t.Fatal("garbage must not validate")
	}
}

func TestNormalizeRoomCode(t *testing.T) {
	cases := []struct {
		in    string
		want  string
		valid bool
	}{
		{"abcd", "abcd", true},
		{"ABCD", "abcd", true},
		{"  Room42  ", "room42", true},
		{"a1b2c3d4", "a1b2c3d4", true},
		{"abc", "", false},
		{"abcdefghi", "", false},
		{"ab cd", "", false},
		{"abc!", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeRoomCode(tc.in)
		if ok != tc.valid || got != tc.want {
			t.Errorf("NormalizeRoomCode(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.valid)
		}
	}
}
