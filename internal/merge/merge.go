// Package merge combines per-supplier offer lists into one ordered,
// deduplicated result set.
package merge

import (
	"cmp"
	"log/slog"
	"sort"
	"time"

	"github.com/dharmasatrya/airsearch/internal/logging"
	"github.com/dharmasatrya/airsearch/internal/models"
	"github.com/dharmasatrya/airsearch/internal/ranking"
	"github.com/dharmasatrya/airsearch/pkg/currency"
)

type Options struct {
	Dedupe     bool
	SortKey    models.SortKey
	Direction  models.SortDirection
	MaxResults int
}

func DefaultOptions() Options {
	return Options{
		Dedupe:     true,
		SortKey:    models.SortPrice,
		Direction:  models.SortAsc,
		MaxResults: 200,
	}
}

type Merger struct {
	opts      Options
	converter currency.Converter
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Merger. converter may be nil, in which case offers priced in
// different currencies are never compared.
func New(opts Options, converter currency.Converter, logger *slog.Logger) *Merger {
	if !opts.SortKey.Valid() {
		opts.SortKey = models.SortPrice
	}
	if !opts.Direction.Valid() {
		opts.Direction = models.SortAsc
	}
	return &Merger{
		opts:      opts,
		converter: converter,
		logger:    logging.Default(logger).With("component", "merge"),
		now:       time.Now,
	}
}

func (m *Merger) Options() Options {
	return m.opts
}

// entry is an offer plus its position in supplier-priority order.
type entry struct {
	offer models.Offer
	seq   int
	// amount is the price used for ordering; group partitions offers whose
	// prices could not be brought into one currency.
	amount int64
	group  string
}

// Merge concatenates contributions (already in supplier-priority order),
// removes duplicates and sorts. The set is not capped: it is the cacheable
// form that requests reorder, filter and then cap with Sort.
func (m *Merger) Merge(contributions []models.SupplierOffers, failed []models.SupplierFailure) *models.MergedResultSet {
	contributing := make([]string, 0, len(contributions))
	var entries []entry
	seen := make(map[string]bool)
	for _, c := range contributions {
		contributing = append(contributing, c.Supplier)
		for _, o := range c.Offers {
			if seen[o.ID()] {
				continue
			}
			seen[o.ID()] = true
			entries = append(entries, entry{offer: o, seq: len(entries)})
		}
	}

	if m.opts.Dedupe {
		entries = m.dedupe(entries)
	}

	set := &models.MergedResultSet{
		SortKey:      m.opts.SortKey,
		Direction:    m.opts.Direction,
		Contributing: contributing,
		Failed:       failed,
		GeneratedAt:  m.now(),
	}
	offers, grouped := m.order(entries, m.opts.SortKey, m.opts.Direction)
	if grouped {
		set.Warnings = append(set.Warnings, models.WarningMixedCurrency)
	}
	set.Offers = offers
	set.TotalCount = len(offers)
	return set
}

// Sort returns a copy of set reordered by key and direction and capped at
// MaxResults. TotalCount is the number of offers in set before the cap.
// set itself is left untouched so cached sets can be reordered per request.
func (m *Merger) Sort(set *models.MergedResultSet, key models.SortKey, dir models.SortDirection) *models.MergedResultSet {
	if !key.Valid() {
		key = set.SortKey
	}
	if !dir.Valid() {
		dir = set.Direction
	}
	out := *set
	out.TotalCount = len(set.Offers)

	if key != set.SortKey || dir != set.Direction {
		rank := make(map[string]int, len(set.Contributing))
		for i, code := range set.Contributing {
			rank[code] = i
		}
		entries := make([]entry, len(set.Offers))
		for i, o := range set.Offers {
			entries[i] = entry{offer: o, seq: rank[o.SupplierCode]*len(set.Offers) + i}
		}

		offers, grouped := m.order(entries, key, dir)
		out.Offers = offers
		out.SortKey = key
		out.Direction = dir
		out.Warnings = nil
		for _, w := range set.Warnings {
			if w != models.WarningMixedCurrency {
				out.Warnings = append(out.Warnings, w)
			}
		}
		if grouped {
			out.Warnings = append(out.Warnings, models.WarningMixedCurrency)
		}
	}

	if m.opts.MaxResults > 0 && len(out.Offers) > m.opts.MaxResults {
		out.Offers = out.Offers[:m.opts.MaxResults:m.opts.MaxResults]
	}
	return &out
}

// dedupe keeps one offer per itinerary signature: the cheaper one, or the
// earlier one when prices tie or cannot be compared.
func (m *Merger) dedupe(entries []entry) []entry {
	bySig := make(map[string]int, len(entries))
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		sig := e.offer.Signature()
		i, ok := bySig[sig]
		if !ok {
			bySig[sig] = len(out)
			out = append(out, e)
			continue
		}
		kept := out[i]
		cheaper, comparable := m.less(e.offer.Price, kept.offer.Price)
		if comparable && cheaper {
			out[i] = e
			m.logger.Debug("duplicate itinerary replaced by cheaper offer",
				"signature", sig,
				"kept", e.offer.ID(),
				"dropped", kept.offer.ID())
		}
	}
	return out
}

// less reports whether a is strictly cheaper than b and whether the two
// could be compared at all.
func (m *Merger) less(a, b models.Price) (bool, bool) {
	if a.Currency == b.Currency {
		return a.Amount < b.Amount, true
	}
	if m.converter == nil {
		return false, false
	}
	converted, err := m.converter.Convert(a.Amount, a.Currency, b.Currency)
	if err != nil {
		return false, false
	}
	return converted < b.Amount, true
}

// order sorts entries and reports whether price grouping by currency was
// needed.
func (m *Merger) order(entries []entry, key models.SortKey, dir models.SortDirection) ([]models.Offer, bool) {
	grouped := false
	if key == models.SortPrice || key == models.SortBestValue {
		grouped = m.normalizePrices(entries)
	}

	if key == models.SortBestValue {
		m.score(entries)
	}

	desc := dir == models.SortDesc
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.group != b.group {
			return a.group < b.group
		}
		if c := compare(a, b, key); c != 0 {
			if desc {
				return c > 0
			}
			return c < 0
		}
		return a.seq < b.seq
	})

	offers := make([]models.Offer, len(entries))
	for i, e := range entries {
		offers[i] = e.offer
	}
	return offers, grouped
}

// normalizePrices fills entry amounts in the currency of the first offer.
// If any price cannot be converted, every entry falls back to its own
// currency and is grouped by it.
func (m *Merger) normalizePrices(entries []entry) bool {
	if len(entries) == 0 {
		return false
	}
	base := entries[0].offer.Price.Currency
	for i := range entries {
		p := entries[i].offer.Price
		if p.Currency == base {
			entries[i].amount = p.Amount
			continue
		}
		if m.converter == nil {
			return m.groupByCurrency(entries)
		}
		converted, err := m.converter.Convert(p.Amount, p.Currency, base)
		if err != nil {
			m.logger.Warn("price conversion unavailable, grouping by currency",
				"from", p.Currency,
				"to", base,
				"error", err)
			return m.groupByCurrency(entries)
		}
		entries[i].amount = converted
	}
	return false
}

func (m *Merger) groupByCurrency(entries []entry) bool {
	for i := range entries {
		entries[i].amount = entries[i].offer.Price.Amount
		entries[i].group = entries[i].offer.Price.Currency
	}
	return true
}

// score sets best-value scores, each currency group scored on its own.
func (m *Merger) score(entries []entry) {
	groups := make(map[string][]int)
	var order []string
	for i, e := range entries {
		if _, ok := groups[e.group]; !ok {
			order = append(order, e.group)
		}
		groups[e.group] = append(groups[e.group], i)
	}

	for _, g := range order {
		idx := groups[g]
		offers := make([]models.Offer, len(idx))
		amounts := make(map[string]float64, len(idx))
		for k, i := range idx {
			offers[k] = entries[i].offer
			amounts[entries[i].offer.ID()] = float64(entries[i].amount)
		}
		scored := ranking.CalculateScores(offers, func(o models.Offer) float64 {
			return amounts[o.ID()]
		})
		for k, i := range idx {
			entries[i].offer = scored[k]
		}
	}
}

func compare(a, b entry, key models.SortKey) int {
	switch key {
	case models.SortDuration:
		return cmp.Compare(a.offer.Duration(), b.offer.Duration())
	case models.SortDeparture:
		return a.offer.Departure().Compare(b.offer.Departure())
	case models.SortBestValue:
		return cmp.Compare(a.offer.BestValueScore, b.offer.BestValueScore)
	default:
		return cmp.Compare(a.amount, b.amount)
	}
}
