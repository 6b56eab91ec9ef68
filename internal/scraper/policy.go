package scraper

import (
	"regexp"
	"strings"

	"github.com/shaiso/Prospector/internal/domain"
)

// DefaultCommercialTokens — признаки дилерского объявления.
var DefaultCommercialTokens = []string{
	"dealer",
	"dealership",
	"financing available",
	"we finance",
	"in-house financing",
	"buy here pay here",
	"bhph",
	"no credit check",
	"bad credit ok",
	"trade-ins welcome",
	"trade ins welcome",
	"extended warranty available",
	"visit our lot",
	"our inventory",
}

// PolicyGate — фильтр коммерческих объявлений.
type PolicyGate struct {
	re *regexp.Regexp
}

// NewPolicyGate компилирует токены в один регэксп с границами слов, без учёта регистра.
// Пустой список — политика ничего не отклоняет.
func NewPolicyGate(tokens []string) *PolicyGate {
	quoted := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(t)))
	}
	if len(quoted) == 0 {
		return &PolicyGate{}
	}
	return &PolicyGate{re: regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)}
}

// Check возвращает найденный токен, если объявление коммерческое.
func (p *PolicyGate) Check(l domain.Listing) (string, bool) {
	if p == nil || p.re == nil {
		return "", false
	}
	text := l.Title + "\n" + l.Description + "\n" + l.SellerName
	m := p.re.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.ToLower(m), true
}
