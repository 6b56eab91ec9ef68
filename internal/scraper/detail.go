package scraper

import (
	"context"

	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/mq"
)

// DefaultSource — источник объявлений по умолчанию.
const DefaultSource = "craigslist"

// LeadUpserter — сохранение лида по ключу (account, source, external_id).
type LeadUpserter interface {
	UpsertFromListing(ctx context.Context, lead *domain.Lead) (*domain.Lead, error)
}

// DetailConfig — зависимости DetailHandler.
type DetailConfig struct {
	Leads     LeadUpserter
	Extractor Extractor

	// Policy — фильтр коммерческих объявлений; nil — DefaultCommercialTokens.
	Policy *PolicyGate

	Notifier Notifier

	// Source — имя источника в лидах (default: craigslist).
	Source string
}

// DetailHandler разбирает одно объявление и сохраняет лид.
type DetailHandler struct {
	leads     LeadUpserter
	extractor Extractor
	policy    *PolicyGate
	notifier  Notifier
	source    string
}

// NewDetailHandler создаёт DetailHandler.
func NewDetailHandler(cfg DetailConfig) *DetailHandler {
	policy := cfg.Policy
	if policy == nil {
		policy = NewPolicyGate(DefaultCommercialTokens)
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = (*mq.Publisher)(nil)
	}
	source := cfg.Source
	if source == "" {
		source = DefaultSource
	}
	return &DetailHandler{
		leads:     cfg.Leads,
		extractor: cfg.Extractor,
		policy:    policy,
		notifier:  notifier,
		source:    source,
	}
}

func (h *DetailHandler) Handle(ctx context.Context, env *Env, task *domain.Task) Result {
	if task.ListingURL == "" || task.ExternalID == "" {
		return Result{Outcome: domain.Failed(domain.ReasonBadRow)}
	}

	if res, ok := env.open(ctx, task, task.ListingURL, h.extractor.DetailMarker()); !ok {
		return res
	}

	html, err := env.html(ctx)
	if err != nil {
		env.Logger.Warn("failed to read listing html", "error", err)
		return Result{Outcome: domain.Failed(domain.ReasonPageCrash), ResetPage: true}
	}

	listing, err := h.extractor.Listing(html)
	if err != nil || (listing.Title == "" && listing.Description == "") {
		env.capture(ctx, task)
		return Result{Outcome: domain.Failed(domain.ReasonMissingContent)}
	}

	if token, rejected := h.policy.Check(listing); rejected {
		env.Logger.Info("listing rejected by content policy", "token", token)
		return Result{Outcome: domain.SoftDone(domain.ReasonRejectedCommercial)}
	}

	lead, err := h.leads.UpsertFromListing(ctx, domain.NewLeadFromListing(task, h.source, listing))
	if err != nil {
		env.Logger.Error("failed to upsert lead", "error", err)
		return Result{Outcome: domain.Failed(domain.ReasonStoreError)}
	}

	env.Logger.Info("lead saved",
		"lead_id", lead.ID,
		"has_phone", lead.HasPhone(),
		"year", listing.Year,
		"make", listing.Make,
	)

	if lead.HasPhone() {
		if err := h.notifier.PublishDeliveryReady(ctx, mq.WakePayload{
			AccountID: lead.AccountID,
			City:      lead.City,
			Count:     1,
		}); err != nil {
			env.Logger.Warn("failed to publish delivery.ready", "error", err)
		}
	}

	return Result{Outcome: domain.Done()}
}
