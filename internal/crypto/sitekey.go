package crypto

import (
	"errors"
	"fmt"
)

type IVMode string

const (
	// IVFixed reuses the configured IV for every payload. This is what the
	// license server expects; identical policies yield identical ciphertext.
	IVFixed IVMode = "fixed"
	// IVRandom draws a fresh IV per payload and prepends it to the ciphertext.
	IVRandom IVMode = "random"
)

var ErrSiteKeyUnset = errors.New("site key material not configured")

func ParseIVMode(s string) (IVMode, error) {
	switch IVMode(s) {
	case "", IVFixed:
		return IVFixed, nil
	case IVRandom:
		return IVRandom, nil
	}
	return "", fmt.Errorf("unknown iv mode %q", s)
}

// SiteKey holds the vendor site key and IV used to seal policy payloads.
type SiteKey struct {
	key  []byte
	iv   []byte
	mode IVMode
}

// NewSiteKey validates key and iv as raw byte strings (the vendor hands them
// out as 32 and 16 character ASCII strings).
func NewSiteKey(key, iv string, mode IVMode) (*SiteKey, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("site key: %w (got %d)", ErrInvalidKeySize, len(key))
	}
	if mode != IVRandom && len(iv) != IVSize {
		return nil, fmt.Errorf("site iv: %w (got %d)", ErrInvalidIVSize, len(iv))
	}
	if mode == "" {
		mode = IVFixed
	}
	return &SiteKey{key: []byte(key), iv: []byte(iv), mode: mode}, nil
}

func (k *SiteKey) Mode() IVMode {
	if k == nil {
		return ""
	}
	return k.mode
}

// Seal encrypts plaintext. In IVRandom mode the output is iv||ciphertext.
func (k *SiteKey) Seal(plaintext []byte) ([]byte, error) {
	if k == nil || len(k.key) == 0 {
		return nil, ErrSiteKeyUnset
	}

	if k.mode != IVRandom {
		return EncryptCBC(k.key, k.iv, plaintext)
	}

	iv, err := GenerateIV()
	if err != nil {
		return nil, err
	}
	ct, err := EncryptCBC(k.key, iv, plaintext)
	if err != nil {
		return nil, err
	}
	return append(iv, ct...), nil
}

// Open reverses Seal.
func (k *SiteKey) Open(sealed []byte) ([]byte, error) {
	if k == nil || len(k.key) == 0 {
		return nil, ErrSiteKeyUnset
	}

	if k.mode != IVRandom {
		return DecryptCBC(k.key, k.iv, sealed)
	}

	if len(sealed) < IVSize {
		return nil, ErrCiphertextSize
	}
	return DecryptCBC(k.key, sealed[:IVSize], sealed[IVSize:])
}
