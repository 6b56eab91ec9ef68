package scraper

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shaiso/Prospector/internal/domain"
)

// Selectors — CSS-селекторы разметки источника.
//
// Разметка меняется чаще кода, поэтому селекторы можно переопределить
// JSON-файлом (SCRAPER_SELECTORS_FILE). Пустые поля берутся из DefaultSelectors.
type Selectors struct {
	// IndexMarker — элемент, означающий, что индекс загрузился.
	IndexMarker string `json:"index_marker"`

	// ListingLink — ссылки на объявления в индексе.
	ListingLink string `json:"listing_link"`

	// DetailMarker — элемент, означающий, что объявление загрузилось.
	DetailMarker string `json:"detail_marker"`

	Title       string `json:"title"`
	Price       string `json:"price"`
	Description string `json:"description"`

	// Attributes — элементы вида "odometer: 123,456".
	Attributes string `json:"attributes"`

	// PostedAt — элемент с атрибутом datetime.
	PostedAt   string `json:"posted_at"`
	SellerName string `json:"seller_name"`
}

// DefaultSelectors — селекторы для разметки craigslist.
func DefaultSelectors() Selectors {
	return Selectors{
		IndexMarker:  "li.cl-static-search-result, .cl-search-result, .result-row",
		ListingLink:  "li.cl-static-search-result a, a.cl-app-anchor, a.result-title, a.posting-title",
		DetailMarker: "#postingbody",
		Title:        "#titletextonly",
		Price:        ".postingtitletext .price, .price",
		Description:  "#postingbody",
		Attributes:   ".attrgroup span, .attrgroup .attr",
		PostedAt:     ".postinginfos time[datetime], time.date.timeago",
		SellerName:   "",
	}
}

// LoadSelectors читает селекторы из JSON-файла поверх DefaultSelectors.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("read selectors: %w", err)
	}

	var override Selectors
	if err := json.Unmarshal(data, &override); err != nil {
		return sel, fmt.Errorf("parse selectors: %w", err)
	}

	sel.merge(override)
	return sel, nil
}

func (s *Selectors) merge(o Selectors) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&s.IndexMarker, o.IndexMarker)
	set(&s.ListingLink, o.ListingLink)
	set(&s.DetailMarker, o.DetailMarker)
	set(&s.Title, o.Title)
	set(&s.Price, o.Price)
	set(&s.Description, o.Description)
	set(&s.Attributes, o.Attributes)
	set(&s.PostedAt, o.PostedAt)
	set(&s.SellerName, o.SellerName)
}

// Extractor разбирает HTML индекса и объявления.
type Extractor interface {
	// Links возвращает абсолютные URL объявлений в порядке появления.
	Links(html, baseURL string) ([]string, error)

	// Listing извлекает поля объявления.
	Listing(html string) (domain.Listing, error)

	// IndexMarker и DetailMarker — CSS-селекторы готовности страниц.
	IndexMarker() string
	DetailMarker() string
}

// SelectorExtractor — Extractor на goquery по конфигурируемым селекторам.
type SelectorExtractor struct {
	sel Selectors
}

var _ Extractor = (*SelectorExtractor)(nil)

// NewSelectorExtractor создаёт SelectorExtractor.
func NewSelectorExtractor(sel Selectors) *SelectorExtractor {
	return &SelectorExtractor{sel: sel}
}

func (e *SelectorExtractor) IndexMarker() string  { return e.sel.IndexMarker }
func (e *SelectorExtractor) DetailMarker() string { return e.sel.DetailMarker }

// Links не удаляет дубликаты, это делает discover по external_id.
func (e *SelectorExtractor) Links(html, baseURL string) ([]string, error) {
	doc, err := createDocument(html)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	var links []string
	doc.Find(e.sel.ListingLink).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})

	return links, nil
}

var (
	phoneRe    = regexp.MustCompile(`(?:\+?1[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)
	emailRe    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	digitsRe   = regexp.MustCompile(`\d+`)
	spacesRe   = regexp.MustCompile(`\s+`)
	titleCarRe = regexp.MustCompile(`^\s*(19[5-9]\d|20[0-4]\d)\s+([A-Za-z-]+)\s+(.+)$`)
)

// boilerplate, который craigslist вставляет в тело объявления.
const qrBoilerplate = "QR Code Link to This Post"

// Listing оставляет отсутствующие поля пустыми; решение о missing_content принимает вызывающий.
func (e *SelectorExtractor) Listing(html string) (domain.Listing, error) {
	doc, err := createDocument(html)
	if err != nil {
		return domain.Listing{}, err
	}

	var l domain.Listing

	l.Title = cleanText(doc.Find(e.sel.Title).First().Text())
	l.Price = parseInt(doc.Find(e.sel.Price).First().Text())

	desc := doc.Find(e.sel.Description).First().Text()
	desc = strings.ReplaceAll(desc, qrBoilerplate, "")
	l.Description = cleanText(desc)

	if e.sel.SellerName != "" {
		l.SellerName = cleanText(doc.Find(e.sel.SellerName).First().Text())
	}

	if e.sel.PostedAt != "" {
		if dt, ok := doc.Find(e.sel.PostedAt).First().Attr("datetime"); ok {
			l.PostedAt = strings.TrimSpace(dt)
		}
	}

	attrs := attributes(doc.Find(e.sel.Attributes))
	if v, ok := attrs["odometer"]; ok {
		l.Mileage = parseInt(v)
	}

	// Год/марка/модель: сначала из заголовка, затем из первой группы атрибутов.
	for _, text := range []string{l.Title, attrs[""]} {
		if m := titleCarRe.FindStringSubmatch(text); m != nil {
			l.Year, _ = strconv.Atoi(m[1])
			l.Make = strings.ToLower(m[2])
			l.Model = firstWords(strings.ToLower(m[3]), 2)
			break
		}
	}
	if l.Year == 0 {
		l.Year = domain.ExtractYear(l.Title + " " + attrs[""])
	}

	// Контакты: явные tel:/mailto: ссылки, затем текст объявления.
	doc.Find(`a[href^="tel:"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		l.SellerPhone = strings.TrimPrefix(href, "tel:")
		return false
	})
	if l.SellerPhone == "" {
		l.SellerPhone = phoneRe.FindString(l.Description)
	}

	doc.Find(`a[href^="mailto:"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		l.SellerEmail = strings.SplitN(strings.TrimPrefix(href, "mailto:"), "?", 2)[0]
		return false
	})
	if l.SellerEmail == "" {
		l.SellerEmail = emailRe.FindString(l.Description)
	}

	return l, nil
}

// attributes собирает пары "ключ: значение". Элементы без двоеточия
// склеиваются под пустым ключом (на craigslist это "2012 honda civic").
func attributes(sel *goquery.Selection) map[string]string {
	out := make(map[string]string)
	sel.Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if text == "" {
			return
		}
		key, value, ok := strings.Cut(text, ":")
		if !ok {
			if out[""] != "" {
				out[""] += " "
			}
			out[""] += text
			return
		}
		out[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	})
	return out
}

func createDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to create goquery document: %w", err)
	}
	return doc, nil
}

func cleanText(s string) string {
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}

// parseInt склеивает все цифры: "$12,500" → 12500.
func parseInt(s string) int {
	digits := strings.Join(digitsRe.FindAllString(s, -1), "")
	if digits == "" || len(digits) > 9 {
		return 0
	}
	n, _ := strconv.Atoi(digits)
	return n
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
