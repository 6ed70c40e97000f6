// Package minigrant implements an OAuth2 extension grant that authenticates
// mini-program users (WeChat, QQ, Baidu, Bytedance, Alipay) and issues the
// standard access/refresh token pair for them. The grant reconciles each
// provider-scoped open_id with a durable identity record and links it to a
// local user, automatically when the platform's union_id allows it.
package minigrant

// GrantTypeMiniProgram is the grant_type value this package serves.
const GrantTypeMiniProgram = "mini-program"

// TokenRequest carries the token-endpoint parameters of a mini-program
// login. The user profile arrives either as plaintext JSON in UserInfo or
// encrypted in EncryptedData together with IV and the per-login SessionKey.
type TokenRequest struct {
	GrantType     string `json:"grant_type" form:"grant_type"`
	ClientID      string `json:"client_id" form:"client_id"`
	ClientSecret  string `json:"client_secret" form:"client_secret"`
	Scope         string `json:"scope" form:"scope"`
	Provider      string `json:"provider" form:"provider"`
	SessionKey    string `json:"session_key" form:"session_key"`
	UserInfo      string `json:"user_info" form:"user_info"`
	EncryptedData string `json:"encrypted_data" form:"encrypted_data"`
	IV            string `json:"iv" form:"iv"`
}

// TokenResponse is the standard OAuth2 token-endpoint success body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
