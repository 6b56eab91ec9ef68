package domain

import (
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Listing — структурированные поля объявления, извлечённые detail-задачей.
type Listing struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Make        string `json:"make,omitempty"`
	Model       string `json:"model,omitempty"`
	Year        int    `json:"year,omitempty"`
	Price       int    `json:"price,omitempty"`
	Mileage     int    `json:"mileage,omitempty"`
	SellerName  string `json:"seller_name,omitempty"`
	SellerPhone string `json:"seller_phone,omitempty"`
	SellerEmail string `json:"seller_email,omitempty"`
	PostedAt    string `json:"posted_at,omitempty"`
}

// Lead — потенциальный клиент, полученный из объявления.
//
// Ключ идемпотентности: (AccountID, Source, ExternalID).
// Повторный scrape того же объявления обновляет поля (last write wins).
type Lead struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`

	// Source — источник объявления (например, "craigslist").
	Source string `json:"source"`

	// ExternalID — идентификатор объявления у источника.
	ExternalID string `json:"external_id"`

	ListingURL string `json:"listing_url"`
	City       string `json:"city,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`

	// State — каноническое состояние; единственный сигнал, можно ли планировать касания.
	State LeadState `json:"state"`

	// LeadStatus — свободный операционный флаг (например, REPLIED).
	LeadStatus string `json:"lead_status,omitempty"`

	Listing Listing `json:"listing"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLeadFromListing создаёт лид из разобранного объявления.
func NewLeadFromListing(task *Task, source string, listing Listing) *Lead {
	now := time.Now()
	return &Lead{
		ID:         uuid.New(),
		AccountID:  task.AccountID,
		Source:     source,
		ExternalID: task.ExternalID,
		ListingURL: task.ListingURL,
		City:       task.City,
		Phone:      NormalizePhone(listing.SellerPhone),
		Email:      listing.SellerEmail,
		State:      LeadStateNew,
		Listing:    listing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// HasPhone — есть ли пригодный для связи телефон.
func (l *Lead) HasPhone() bool {
	return len(l.Phone) >= 10
}

// NormalizePhone оставляет только цифры и ведущий '+'.
func NormalizePhone(raw string) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= '0' && c <= '9':
			out = append(out, c)
		case c == '+' && len(out) == 0:
			out = append(out, c)
		}
	}
	return string(out)
}

var yearRe = regexp.MustCompile(`\b(19[5-9]\d|20[0-4]\d)\b`)

// ExtractYear находит первый правдоподобный модельный год (1950..2049) в тексте.
// Возвращает 0, если года нет.
func ExtractYear(text string) int {
	m := yearRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	year, _ := strconv.Atoi(m[1])
	return year
}

var externalIDRe = regexp.MustCompile(`(\d+)\.html?$`)

// ExternalIDFromURL извлекает идентификатор объявления: число перед .html в пути URL.
// Query и fragment игнорируются.
func ExternalIDFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	m := externalIDRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}
