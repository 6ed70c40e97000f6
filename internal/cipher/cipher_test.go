package cipher

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeyIV(t *testing.T) (keyB64, ivB64 string, key, iv []byte) {
	t.Helper()
	key = make([]byte, 16)
	iv = make([]byte, 16)
	_, err := rand.Read(key)
	require.NoError(t, err)
	_, err = rand.Read(iv)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(iv), key, iv
}

// encryptCBC applies PKCS#7 padding and AES-CBC, mirroring what the
// platforms do server-side before handing the blob to the client.
func encryptCBC(t *testing.T, key, iv, plain []byte) string {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	pad := block.BlockSize() - len(plain)%block.BlockSize()
	padded := append(append([]byte{}, plain...), bytes.Repeat([]byte{byte(pad)}, pad)...)

	out := make([]byte, len(padded))
	gocipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out)
}

// wrapBaidu builds Baidu's container around the content: 16-byte header,
// 4-byte big-endian length, content, optional trailing junk, PKCS#7-style
// pad byte repetition at the end.
func wrapBaidu(content []byte, trailing []byte, pad int) []byte {
	buf := make([]byte, 16)
	lenPrefix := make([]byte, 4)
	binary.BigEndian.PutUint32(lenPrefix, uint32(len(content)))
	buf = append(buf, lenPrefix...)
	buf = append(buf, content...)
	buf = append(buf, trailing...)
	if pad > 0 {
		buf = append(buf, bytes.Repeat([]byte{byte(pad)}, pad)...)
	}
	return buf
}

func encryptRaw(t *testing.T, key, iv, plain []byte) string {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	require.Zero(t, len(plain)%block.BlockSize(), "test container must be block aligned")
	out := make([]byte, len(plain))
	gocipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plain)
	return base64.StdEncoding.EncodeToString(out)
}

func TestDecryptRoundTrip(t *testing.T) {
	keyB64, ivB64, key, iv := newKeyIV(t)

	profile := map[string]any{
		"openId":    "oGZUI0egBJY1zhBYw2KhdUfwVJJE",
		"unionId":   "ocMvos6NjeKLIBqg5Mr9QjxrP1FA",
		"nickName":  "Band",
		"avatarUrl": "http://wx.qlogo.cn/mmopen/vi_32/aSKcBBPpibyKNicHNTMM0qJVh8Kjgiak2AHWr8MHM4WgMEm7GFhsf8OYrySdbvAMvTsw3mo8ibKicsnfN5pRjl1p8HQ/0",
	}
	plain, err := json.Marshal(profile)
	require.NoError(t, err)

	got, err := Decrypt(keyB64, ivB64, encryptCBC(t, key, iv, plain))
	require.NoError(t, err)
	assert.Equal(t, "oGZUI0egBJY1zhBYw2KhdUfwVJJE", got["openId"])
	assert.Equal(t, "Band", got["nickName"])
	assert.Len(t, got, len(profile))
}

func TestDecryptErrors(t *testing.T) {
	keyB64, ivB64, key, iv := newKeyIV(t)

	t.Run("bad base64 key", func(t *testing.T) {
		_, err := Decrypt("!!not-base64!!", ivB64, encryptCBC(t, key, iv, []byte(`{}`)))
		assert.ErrorIs(t, err, ErrDecryption)
	})

	t.Run("bad base64 ciphertext", func(t *testing.T) {
		_, err := Decrypt(keyB64, ivB64, "%%%")
		assert.ErrorIs(t, err, ErrDecryption)
	})

	t.Run("short key", func(t *testing.T) {
		shortKey := base64.StdEncoding.EncodeToString([]byte("tooshort"))
		_, err := Decrypt(shortKey, ivB64, encryptCBC(t, key, iv, []byte(`{}`)))
		assert.ErrorIs(t, err, ErrDecryption)
	})

	t.Run("ciphertext not block aligned", func(t *testing.T) {
		_, err := Decrypt(keyB64, ivB64, base64.StdEncoding.EncodeToString([]byte("12345")))
		assert.ErrorIs(t, err, ErrDecryption)
	})

	t.Run("plaintext not json", func(t *testing.T) {
		_, err := Decrypt(keyB64, ivB64, encryptCBC(t, key, iv, []byte("plain text, no json")))
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("wrong key yields no partial result", func(t *testing.T) {
		otherB64, _, _, _ := newKeyIV(t)
		got, err := Decrypt(otherB64, ivB64, encryptCBC(t, key, iv, []byte(`{"openId":"x"}`)))
		assert.Error(t, err)
		assert.Nil(t, got)
	})
}

func TestDecryptBaiduRoundTrip(t *testing.T) {
	keyB64, ivB64, key, iv := newKeyIV(t)

	content := []byte(`{"openid":"bd-open-1","nickname":"walker","mobile":"13800000000"}`)
	container := wrapBaidu(content, []byte("trailing-junk"), 0)
	if rem := len(container) % 16; rem != 0 {
		// Align with a valid pad run so the container stays block sized.
		pad := 16 - rem
		container = wrapBaidu(content, []byte("trailing-junk"), pad)
	}

	got, err := DecryptBaidu(keyB64, ivB64, encryptRaw(t, key, iv, container))
	require.NoError(t, err)
	assert.Equal(t, "bd-open-1", got["openid"])
	assert.Equal(t, "walker", got["nickname"])
}

func TestBaiduPadByteEdgeCases(t *testing.T) {
	// Pad bytes outside [1,32] mean no padding was applied: the container
	// must survive untruncated with the declared content intact.
	for _, padByte := range []byte{0, 33, 255} {
		content := []byte(`{"openid":"bd-open-2"}`)
		container := wrapBaidu(content, nil, 0)
		// Fill up to a block boundary, ending in the out-of-range pad byte.
		for len(container)%16 != 15 {
			container = append(container, 'x')
		}
		container = append(container, padByte)

		got, err := unwrapBaidu(container)
		require.NoError(t, err, "pad byte %d", padByte)
		assert.Equal(t, content, got, "pad byte %d", padByte)
	}
}

func TestBaiduFramingErrors(t *testing.T) {
	t.Run("declared length exceeds buffer", func(t *testing.T) {
		container := make([]byte, 16+4+8)
		binary.BigEndian.PutUint32(container[16:20], 1000)
		// Terminate with an out-of-range pad byte so no truncation applies.
		container[len(container)-1] = 0
		_, err := unwrapBaidu(container)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("container shorter than header", func(t *testing.T) {
		_, err := unwrapBaidu([]byte{0, 0, 0, 0, 0, 0, 0, 0})
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("empty container", func(t *testing.T) {
		_, err := unwrapBaidu(nil)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("pad consumes whole container", func(t *testing.T) {
		_, err := unwrapBaidu(bytes.Repeat([]byte{32}, 24))
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})
}
