package trigger

import (
	"encoding/base64"
	"errors"
)

// decodeBase64 accepts either standard or URL-safe base64, padded or not,
// matching the tolerance real webhook senders need.
func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// pkcs7Unpad strips PKCS#7 padding from a decrypted AES-CBC block stream.
func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("pkcs7: empty input")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, errors.New("pkcs7: invalid padding")
	}
	return data[:len(data)-padLen], nil
}
