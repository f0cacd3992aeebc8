package verify

import "testing"

func TestSignKnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	s := NewSigner("Jefe")
	got := s.Sign([]byte("what do ya want for nothing?"))
	want := "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843"
	if got != want {
		t.Errorf("Sign = %s, want %s", got, want)
	}
}

func TestSignDeterministic(t *testing.T) {
	s := NewSigner("secret")
	payload := []byte(`{"file_url":"https://example.com/f.csv","callback_url":"https://example.com/callback"}`)
	if s.Sign(payload) != s.Sign(payload) {
		t.Error("same payload must produce the same digest")
	}
	if s.Sign(payload) == s.Sign([]byte(`{"other":true}`)) {
		t.Error("different payloads must produce different digests")
	}
}

func TestAuthorizationFormat(t *testing.T) {
	s := NewSigner("secret")
	payload := []byte(`{}`)
	got := s.Authorization("my-key", payload)
	want := "hmac my-key:" + s.Sign(payload)
	if got != want {
		t.Errorf("Authorization = %s, want %s", got, want)
	}
}
