package credential

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Provider 凭据所属的外部服务
type Provider string

const (
	ProviderLLM    Provider = "llm"
	ProviderGemini Provider = "gemini"
	ProviderTavily Provider = "tavily"
	ProviderPexels Provider = "pexels"
)

var ErrInvalid = errors.New("invalid credential")

type rule struct {
	minLen int
	prefix string
	exact  int
}

var rules = map[Provider]rule{
	ProviderLLM:    {minLen: 8},
	ProviderGemini: {prefix: "AIzaSy", exact: 39},
	ProviderTavily: {minLen: 16, prefix: "tvly-"},
	ProviderPexels: {minLen: 32},
}

// Credential 不透明的凭据对象。格式化输出总是脱敏，只有 Reveal 返回原文
type Credential struct {
	provider Provider
	secret   string
}

// New 校验格式后创建凭据
func New(p Provider, secret string) (Credential, error) {
	if err := Validate(p, secret); err != nil {
		return Credential{}, err
	}
	return Credential{provider: p, secret: secret}, nil
}

// Validate 非空、无空白、长度与前缀规则
func Validate(p Provider, secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: %s key is empty", ErrInvalid, p)
	}
	if strings.IndexFunc(secret, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %s key contains whitespace", ErrInvalid, p)
	}
	r, ok := rules[p]
	if !ok {
		return nil
	}
	if r.prefix != "" && !strings.HasPrefix(secret, r.prefix) {
		return fmt.Errorf("%w: %s key must start with %q", ErrInvalid, p, r.prefix)
	}
	if r.exact > 0 && len(secret) != r.exact {
		return fmt.Errorf("%w: %s key must be %d characters", ErrInvalid, p, r.exact)
	}
	if len(secret) < r.minLen {
		return fmt.Errorf("%w: %s key is too short", ErrInvalid, p)
	}
	return nil
}

func (c Credential) Provider() Provider { return c.provider }

// Reveal 返回原文，只应在构造请求头时调用
func (c Credential) Reveal() string { return c.secret }

func (c Credential) IsZero() bool { return c.secret == "" }

func (c Credential) String() string {
	if c.secret == "" {
		return string(c.provider) + ":<none>"
	}
	tail := ""
	if len(c.secret) >= 12 {
		tail = c.secret[len(c.secret)-4:]
	}
	return string(c.provider) + ":****" + tail
}

func (c Credential) GoString() string { return c.String() }

func (c Credential) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", c.String())), nil
}
