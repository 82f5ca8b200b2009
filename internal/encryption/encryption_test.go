package encryption

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"medrx/internal/config"
	"medrx/internal/rx"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "medrx.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "medrx.key"),
	})
}

func roundTrip(t *testing.T, enc rx.Encryptor, passphrase string, input []byte) []byte {
	t.Helper()

	var sealed bytes.Buffer
	if err := enc.Encrypt(bytes.NewReader(input), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	dec, err := enc.Unlock(passphrase)
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var plain bytes.Buffer
	if err := dec.Decrypt(bytes.NewReader(sealed.Bytes()), &plain); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	return plain.Bytes()
}

func TestEncryptors_RoundTrip(t *testing.T) {
	t.Parallel()

	body := []byte{0x84, 0xa4, 'n', 'a', 'm', 'e', 0xc0}

	t.Run("plaintext leaves data unchanged", func(t *testing.T) {
		t.Parallel()
		e := NewPlaintextEncryptor()

		var out bytes.Buffer
		if err := e.Encrypt(bytes.NewReader(body), &out); err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if !bytes.Equal(out.Bytes(), body) {
			t.Errorf("Encrypt() = %x, want %x", out.Bytes(), body)
		}
		if got := roundTrip(t, e, "", body); !bytes.Equal(got, body) {
			t.Errorf("round trip = %x, want %x", got, body)
		}
	})

	t.Run("test encryptor", func(t *testing.T) {
		t.Parallel()
		if got := roundTrip(t, NewTestEncryptor(), "", body); !bytes.Equal(got, body) {
			t.Errorf("round trip = %x, want %x", got, body)
		}
	})

	t.Run("age", func(t *testing.T) {
		t.Parallel()
		e := newTestAgeEncryptor(t)
		if err := e.Setup("correct horse"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if got := roundTrip(t, e, "correct horse", body); !bytes.Equal(got, body) {
			t.Errorf("round trip = %x, want %x", got, body)
		}
	})
}

func TestTestEncryptor_RejectsPlainData(t *testing.T) {
	t.Parallel()

	dec, _ := NewTestEncryptor().Unlock("")
	var out bytes.Buffer
	if err := dec.Decrypt(bytes.NewReader([]byte("plain")), &out); !errors.Is(err, errNotSealed) {
		t.Errorf("Decrypt() error = %v, want errNotSealed", err)
	}
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()

	t.Run("configures keys", func(t *testing.T) {
		t.Parallel()
		e := newTestAgeEncryptor(t)
		if e.IsConfigured() {
			t.Fatal("IsConfigured() = true before Setup")
		}
		if err := e.Setup("pass"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if !e.IsConfigured() {
			t.Error("IsConfigured() = false after Setup")
		}
	})

	t.Run("refuses to replace keys", func(t *testing.T) {
		t.Parallel()
		e := newTestAgeEncryptor(t)
		if err := e.Setup("pass"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if err := e.Setup("pass"); !errors.Is(err, ErrKeysExist) {
			t.Errorf("second Setup() error = %v, want ErrKeysExist", err)
		}
	})

	t.Run("rejects empty passphrase", func(t *testing.T) {
		t.Parallel()
		if err := newTestAgeEncryptor(t).Setup(""); err == nil {
			t.Error("Setup(\"\") expected error")
		}
	})
}

func TestAgeEncryptor_Failures(t *testing.T) {
	t.Parallel()

	t.Run("wrong passphrase", func(t *testing.T) {
		t.Parallel()
		e := newTestAgeEncryptor(t)
		if err := e.Setup("right"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if _, err := e.Unlock("wrong"); err == nil {
			t.Error("Unlock() with wrong passphrase expected error")
		}
	})

	t.Run("encrypt before setup", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := newTestAgeEncryptor(t).Encrypt(bytes.NewReader([]byte("x")), &buf); err == nil {
			t.Error("Encrypt() before Setup expected error")
		}
	})

	t.Run("decrypt garbage", func(t *testing.T) {
		t.Parallel()
		e := newTestAgeEncryptor(t)
		if err := e.Setup("pass"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		dec, err := e.Unlock("pass")
		if err != nil {
			t.Fatalf("Unlock() error = %v", err)
		}
		var out bytes.Buffer
		if err := dec.Decrypt(bytes.NewReader([]byte("not age")), &out); err == nil {
			t.Error("Decrypt() of garbage expected error")
		}
	})
}

func TestNewEncryptorFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ     string
		want    string
		wantErr bool
	}{
		{typ: "", want: "*encryption.PlaintextEncryptor"},
		{typ: "none", want: "*encryption.PlaintextEncryptor"},
		{typ: "age", want: "*encryption.AgeEncryptor"},
		{typ: "test", want: "*encryption.TestEncryptor"},
		{typ: "rot13", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: tt.typ})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEncryptorFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if name := typeName(got); name != tt.want {
				t.Errorf("NewEncryptorFromConfig() = %s, want %s", name, tt.want)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *PlaintextEncryptor:
		return "*encryption.PlaintextEncryptor"
	case *AgeEncryptor:
		return "*encryption.AgeEncryptor"
	case *TestEncryptor:
		return "*encryption.TestEncryptor"
	default:
		return "unknown"
	}
}
