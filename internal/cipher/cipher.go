// Package cipher recovers plaintext user profiles from the symmetrically
// encrypted payloads mini-program platforms hand to their clients. All
// platforms share the same AES-128-CBC contract keyed by the per-login
// session key; Baidu additionally wraps the plaintext in a length-prefixed
// container that needs a second unwrap stage.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrDecryption marks cryptographic failures: undecodable base64
	// inputs, a key or IV of the wrong size, or a ciphertext that is not
	// a whole number of blocks.
	ErrDecryption = errors.New("payload decryption failed")

	// ErrMalformedPayload marks content failures after a successful block
	// decrypt: plaintext that is not valid JSON, or a Baidu container
	// whose framing is inconsistent.
	ErrMalformedPayload = errors.New("malformed payload")
)

const (
	baiduHeaderSize = 16
	baiduLengthSize = 4
	maxPadLen       = 32
)

// Decrypt recovers the profile JSON for providers on the standard contract
// (WeChat, QQ, Bytedance): AES-CBC over the base64-decoded inputs, PKCS#7
// unpadding, then a direct JSON parse.
func Decrypt(sessionKey, iv, ciphertext string) (map[string]any, error) {
	plain, err := decryptCBC(sessionKey, iv, ciphertext)
	if err != nil {
		return nil, err
	}
	return parseJSON(unpad(plain))
}

// DecryptBaidu recovers the profile JSON from Baidu's proprietary container:
// the same block decrypt, then pad-byte truncation, a fixed 16-byte header,
// and a big-endian length prefix framing the JSON content.
func DecryptBaidu(sessionKey, iv, ciphertext string) (map[string]any, error) {
	plain, err := decryptCBC(sessionKey, iv, ciphertext)
	if err != nil {
		return nil, err
	}
	content, err := unwrapBaidu(plain)
	if err != nil {
		return nil, err
	}
	return parseJSON(content)
}

func decryptCBC(sessionKey, iv, ciphertext string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: session key is not valid base64", ErrDecryption)
	}
	ivBytes, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return nil, fmt.Errorf("%w: iv is not valid base64", ErrDecryption)
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not valid base64", ErrDecryption)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %d-byte session key", ErrDecryption, len(key))
	}
	if len(ivBytes) != block.BlockSize() {
		return nil, fmt.Errorf("%w: %d-byte iv", ErrDecryption, len(ivBytes))
	}
	if len(data) == 0 || len(data)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a block multiple", ErrDecryption, len(data))
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, ivBytes).CryptBlocks(plain, data)
	return plain, nil
}

// unpad strips PKCS#7 padding. Platforms pad with block sizes up to 32, so
// any trailing byte outside [1,32] means no padding was applied.
func unpad(buf []byte) []byte {
	if len(buf) == 0 {
		return buf
	}
	pad := int(buf[len(buf)-1])
	if pad < 1 || pad > maxPadLen || pad > len(buf) {
		return buf
	}
	return buf[:len(buf)-pad]
}

// unwrapBaidu peels Baidu's container in its documented order: pad-byte
// truncation first, then the 16-byte header, then the 4-byte big-endian
// content length, then exactly that many content bytes. Trailing bytes
// after the content are ignored.
func unwrapBaidu(plain []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, fmt.Errorf("%w: empty baidu container", ErrMalformedPayload)
	}

	pad := int(plain[len(plain)-1])
	if pad < 1 || pad > maxPadLen {
		pad = 0
	}
	if pad > len(plain) {
		return nil, fmt.Errorf("%w: baidu pad length %d exceeds container", ErrMalformedPayload, pad)
	}
	body := plain[:len(plain)-pad]

	if len(body) < baiduHeaderSize+baiduLengthSize {
		return nil, fmt.Errorf("%w: baidu container too short (%d bytes)", ErrMalformedPayload, len(body))
	}
	body = body[baiduHeaderSize:]

	contentLen := binary.BigEndian.Uint32(body[:baiduLengthSize])
	body = body[baiduLengthSize:]
	if contentLen > uint32(len(body)) {
		return nil, fmt.Errorf("%w: baidu content length %d exceeds remaining %d bytes", ErrMalformedPayload, contentLen, len(body))
	}

	return body[:contentLen], nil
}

func parseJSON(content []byte) (map[string]any, error) {
	var profile map[string]any
	if err := json.Unmarshal(content, &profile); err != nil {
		return nil, fmt.Errorf("%w: plaintext is not valid JSON", ErrMalformedPayload)
	}
	return profile, nil
}
