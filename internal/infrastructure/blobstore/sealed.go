package blobstore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealed encrypts values with XChaCha20-Poly1305 before handing them to
// the wrapped Store. The key name is bound as additional data so a blob
// cannot be replayed under another key.
type Sealed struct {
	next Store
	aead cipher.AEAD
}

// NewSealed needs a 32 byte key.
func NewSealed(next Store, key []byte) (*Sealed, error) {
	a, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("blobstore: seal key: %w", err)
	}
	return &Sealed{next: next, aead: a}, nil
}

func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	buf, err := s.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	ns := s.aead.NonceSize()
	if len(buf) < ns {
		return nil, fmt.Errorf("blobstore: sealed value too short")
	}
	pt, err := s.aead.Open(nil, buf[:ns], buf[ns:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("blobstore: open sealed value: %w", err)
	}
	return pt, nil
}

func (s *Sealed) Put(ctx context.Context, key string, value []byte) error {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	return s.next.Put(ctx, key, s.aead.Seal(nonce, nonce, value, []byte(key)))
}
