package delivery

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/domain"
)

// ListingHash — стабильный ключ объявления внутри аккаунта.
//
// Основа — (source, external_id). Если external_id неизвестен,
// используется нормализованный URL: без схемы, query, fragment и завершающего '/'.
func ListingHash(accountID uuid.UUID, source, externalID, listingURL string) string {
	key := externalID
	if key == "" {
		key, _ = domain.ExternalIDFromURL(listingURL)
	}
	if key == "" {
		key = "url:" + NormalizeURL(listingURL)
	}

	sum := sha256.Sum256([]byte(accountID.String() + "|" + strings.ToLower(source) + "|" + key))
	return hex.EncodeToString(sum[:])
}

// LeadHash — ListingHash для лида.
func LeadHash(lead *domain.Lead) string {
	return ListingHash(lead.AccountID, lead.Source, lead.ExternalID, lead.ListingURL)
}

// NormalizeURL приводит URL объявления к каноническому виду.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), "/")
	}
	return strings.ToLower(u.Host) + strings.TrimRight(u.Path, "/")
}
