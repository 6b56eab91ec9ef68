package delivery

import (
	"github.com/shaiso/Prospector/internal/domain"
)

// BuildPayload собирает JSON-тело webhook'а из лида.
//
// external_id берётся из URL, если не сохранён; год — из заголовка
// или описания, если структурного поля нет. Пустые поля не отправляются.
func BuildPayload(lead *domain.Lead) map[string]any {
	l := lead.Listing

	externalID := lead.ExternalID
	if externalID == "" {
		externalID, _ = domain.ExternalIDFromURL(lead.ListingURL)
	}

	year := l.Year
	if year == 0 {
		year = domain.ExtractYear(l.Title)
	}
	if year == 0 {
		year = domain.ExtractYear(l.Description)
	}

	sellerPhone := lead.Phone
	if sellerPhone == "" {
		sellerPhone = domain.NormalizePhone(l.SellerPhone)
	}

	payload := map[string]any{
		"lead_id":     lead.ID.String(),
		"account_id":  lead.AccountID.String(),
		"phone":       sellerPhone,
		"source":      lead.Source,
		"external_id": externalID,
		"url":         lead.ListingURL,
	}

	putString(payload, "city", lead.City)
	putString(payload, "title", l.Title)
	putString(payload, "make", l.Make)
	putString(payload, "model", l.Model)
	putInt(payload, "year", year)
	putInt(payload, "price", l.Price)
	putInt(payload, "mileage", l.Mileage)
	putString(payload, "seller_name", l.SellerName)
	putString(payload, "seller_phone", sellerPhone)
	putString(payload, "seller_email", firstNonEmpty(lead.Email, l.SellerEmail))
	putString(payload, "posted_at", l.PostedAt)
	putString(payload, "description", l.Description)

	return payload
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}

func putInt(m map[string]any, key string, v int) {
	if v != 0 {
		m[key] = v
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
