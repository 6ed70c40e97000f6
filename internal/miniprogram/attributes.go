// Package miniprogram normalizes the raw user profiles mini-program
// platforms return into one canonical attribute set, and knows which
// decryption routine each platform's payload needs.
package miniprogram

import (
	"errors"
	"fmt"

	"go.pilab.hu/minigrant/domain"
	"go.pilab.hu/minigrant/internal/cipher"
)

// ErrMissingOpenID is returned when a provider payload carries no usable
// external user identifier.
var ErrMissingOpenID = errors.New("provider payload has no open id")

// Attributes is the canonical profile extracted from a provider payload.
// Raw always holds the full provider response; fields the mapping does not
// cover survive only there.
type Attributes struct {
	Provider domain.Provider
	OpenID   string
	UnionID  string
	Name     string
	Nickname string
	Email    string
	Mobile   string
	Avatar   string
	Raw      map[string]any
}

// Upsert converts the attributes into the repository's write record.
func (a Attributes) Upsert() domain.IdentityUpsert {
	return domain.IdentityUpsert{
		Provider: a.Provider,
		OpenID:   a.OpenID,
		UnionID:  a.UnionID,
		Name:     a.Name,
		Nickname: a.Nickname,
		Email:    a.Email,
		Mobile:   a.Mobile,
		Avatar:   a.Avatar,
		RawData:  a.Raw,
	}
}

// DecryptPayload recovers the profile map from an encrypted payload using
// the routine the platform requires. Only Baidu deviates from the shared
// AES-CBC contract.
func DecryptPayload(provider domain.Provider, sessionKey, iv, encryptedData string) (map[string]any, error) {
	if provider == domain.ProviderBaidu {
		return cipher.DecryptBaidu(sessionKey, iv, encryptedData)
	}
	return cipher.Decrypt(sessionKey, iv, encryptedData)
}

// Normalize maps a provider's native field names onto the canonical
// attribute set. Each platform gets an explicit conversion; there is no
// reflective field copying.
func Normalize(provider domain.Provider, raw map[string]any) (Attributes, error) {
	attrs := Attributes{Provider: provider, Raw: raw}

	switch provider {
	case domain.ProviderWeChat, domain.ProviderQQ:
		normalizeWeChatFamily(&attrs, raw)
	case domain.ProviderBytedance:
		normalizeBytedance(&attrs, raw)
	case domain.ProviderBaidu:
		normalizeBaidu(&attrs, raw)
	case domain.ProviderAlipay:
		normalizeAlipay(&attrs, raw)
	default:
		return Attributes{}, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider)
	}

	if attrs.OpenID == "" {
		return Attributes{}, fmt.Errorf("%w (provider %s)", ErrMissingOpenID, provider)
	}
	return attrs, nil
}

func str(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := raw[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
