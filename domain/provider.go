package domain

import "fmt"

// Provider identifies a mini-program platform.
type Provider string

const (
	ProviderWeChat    Provider = "wechat"
	ProviderQQ        Provider = "qq"
	ProviderBaidu     Provider = "baidu"
	ProviderBytedance Provider = "bytedance"
	ProviderAlipay    Provider = "alipay"
)

// Providers lists every supported platform.
var Providers = []Provider{
	ProviderWeChat,
	ProviderQQ,
	ProviderBaidu,
	ProviderBytedance,
	ProviderAlipay,
}

// ParseProvider validates a provider name supplied by a token request.
func ParseProvider(name string) (Provider, error) {
	for _, p := range Providers {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

func (p Provider) String() string {
	return string(p)
}
