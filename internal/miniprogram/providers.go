package miniprogram

// WeChat and QQ mini-programs share the same userInfo contract. Phone
// payloads carry purePhoneNumber (without country code), which wins over
// the prefixed phoneNumber.
func normalizeWeChatFamily(attrs *Attributes, raw map[string]any) {
	attrs.OpenID = str(raw, "openId", "openid")
	attrs.UnionID = str(raw, "unionId", "unionid")
	attrs.Nickname = str(raw, "nickName", "nickname")
	attrs.Avatar = str(raw, "avatarUrl")
	attrs.Mobile = str(raw, "purePhoneNumber", "phoneNumber")
}

// Bytedance (Douyin/Toutiao) mirrors the WeChat field names.
func normalizeBytedance(attrs *Attributes, raw map[string]any) {
	attrs.OpenID = str(raw, "openId", "openid")
	attrs.UnionID = str(raw, "unionId", "unionid")
	attrs.Nickname = str(raw, "nickName", "nickname")
	attrs.Avatar = str(raw, "avatarUrl")
}

// Baidu smart programs use lowercase snake-ish names and expose the avatar
// as headimgurl.
func normalizeBaidu(attrs *Attributes, raw map[string]any) {
	attrs.OpenID = str(raw, "openid")
	attrs.UnionID = str(raw, "unionid")
	attrs.Nickname = str(raw, "nickname")
	attrs.Avatar = str(raw, "headimgurl")
	attrs.Mobile = str(raw, "mobile")
}

// Alipay identifies users by user_id and is the only platform handing out
// an email address.
func normalizeAlipay(attrs *Attributes, raw map[string]any) {
	attrs.OpenID = str(raw, "user_id", "open_id")
	attrs.Name = str(raw, "user_name")
	attrs.Nickname = str(raw, "nick_name")
	attrs.Avatar = str(raw, "avatar")
	attrs.Mobile = str(raw, "mobile")
	attrs.Email = str(raw, "email")
}
