// Package dedupe decides whether incoming transactions are already present,
// either in the stored records of a budget or earlier in the same upload.
// Detection is a pure function of its inputs: it never filters candidates,
// it only returns verdicts for the caller to act on.
package dedupe

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/budget-importer/internal/domain/import/mapper"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/normalizer"
)

// Scoring constants.
const (
	DefaultDateTolerance       = 1
	DefaultConfidenceThreshold = 0.7

	vendorMatchThreshold = 0.6
	sameDateBase         = 0.7
	sameDateWeight       = 0.3
	sameDateWeakVendor   = 0.5
	nearDateBase         = 0.4
	nearDateWeight       = 0.2
)

var amountTolerance = decimal.New(1, -2)

// ExistingRecord is a stored transaction as seen by the detector.
type ExistingRecord struct {
	ID          uuid.UUID       `json:"id"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Vendor      string          `json:"vendor"`
	Description string          `json:"description,omitempty"`
	AccountID   uuid.UUID       `json:"accountId"`
}

// Verdict is the outcome for one candidate.
type Verdict struct {
	Candidate     mapper.MappedTransaction `json:"candidate"`
	IsDuplicate   bool                     `json:"isDuplicate"`
	Confidence    float64                  `json:"confidence"`
	MatchedRecord *ExistingRecord          `json:"matchedRecord,omitempty"`
	Reason        string                   `json:"reason,omitempty"`
}

// Options controls DetectDuplicates.
type Options struct {
	// AccountID restricts matching to records of one account when set.
	AccountID *uuid.UUID
	// DateTolerance is the inclusive window, in days, for near-date matches.
	// Zero allows same-day matches only; a negative value means
	// DefaultDateTolerance.
	DateTolerance int
	// ConfidenceThreshold is the minimum score for a duplicate verdict. A
	// non-positive value means DefaultConfidenceThreshold.
	ConfidenceThreshold float64
}

// DefaultOptions returns the standard tolerance and threshold with no
// account scope.
func DefaultOptions() Options {
	return Options{
		DateTolerance:       DefaultDateTolerance,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

// preparedRecord caches per-record work shared across candidates.
type preparedRecord struct {
	record *ExistingRecord
	vendor string
	cents  int64
}

// DetectDuplicates returns one verdict per candidate, in candidate order.
//
// Each candidate is compared against records within DateTolerance days whose
// amount matches to within 0.01. The best-scoring record is kept; on a tie
// the earliest record wins. A record is claimed only when its score reaches
// the threshold, and a claimed record is not offered to later candidates, so
// no record is matched twice in one run.
func DetectDuplicates(candidates []mapper.MappedTransaction, existing []ExistingRecord, opts Options) []Verdict {
	if opts.DateTolerance < 0 {
		opts.DateTolerance = DefaultDateTolerance
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}

	prepared, byCents := prepare(existing, opts.AccountID)
	consumed := make([]bool, len(prepared))

	verdicts := make([]Verdict, len(candidates))
	for i, candidate := range candidates {
		verdicts[i] = Verdict{Candidate: candidate}

		candidateVendor := normalizer.NormalizeVendor(candidate.Vendor)
		best, bestScore, bestReason := -1, 0.0, ""

		for _, j := range nearbyAmounts(byCents, toCents(candidate.Amount)) {
			if consumed[j] {
				continue
			}
			rec := prepared[j]

			if candidate.Amount.Sub(rec.record.Amount).Abs().GreaterThan(amountTolerance) {
				continue
			}
			days, err := normalizer.DaysBetween(candidate.Date, rec.record.Date)
			if err != nil || days > opts.DateTolerance {
				continue
			}

			sim := Similarity(candidateVendor, rec.vendor)
			score, reason := scorePair(days, sim)
			if score > bestScore {
				best, bestScore, bestReason = j, score, reason
			}
		}

		if best < 0 {
			continue
		}

		verdicts[i].Confidence = bestScore
		verdicts[i].Reason = bestReason
		if bestScore >= opts.ConfidenceThreshold {
			consumed[best] = true
			verdicts[i].IsDuplicate = true
			matched := *prepared[best].record
			verdicts[i].MatchedRecord = &matched
		}
	}

	return verdicts
}

func scorePair(days int, sim float64) (float64, string) {
	switch {
	case days == 0 && sim >= vendorMatchThreshold:
		return sameDateBase + sameDateWeight*sim,
			fmt.Sprintf("Same date and amount, vendor %.0f%% similar", sim*100)
	case days == 0:
		return sameDateWeakVendor, "Same date and amount, different vendor"
	case sim >= vendorMatchThreshold:
		return nearDateBase + nearDateWeight*sim,
			fmt.Sprintf("Same amount %d day(s) apart, vendor %.0f%% similar", days, sim*100)
	}
	return 0, ""
}

func prepare(existing []ExistingRecord, accountID *uuid.UUID) ([]preparedRecord, map[int64][]int) {
	prepared := make([]preparedRecord, 0, len(existing))
	byCents := make(map[int64][]int, len(existing))

	for i := range existing {
		rec := &existing[i]
		if accountID != nil && rec.AccountID != *accountID {
			continue
		}
		vendor := rec.Vendor
		if vendor == "" {
			vendor = rec.Description
		}
		p := preparedRecord{
			record: rec,
			vendor: normalizer.NormalizeVendor(vendor),
			cents:  toCents(rec.Amount),
		}
		byCents[p.cents] = append(byCents[p.cents], len(prepared))
		prepared = append(prepared, p)
	}

	return prepared, byCents
}

// nearbyAmounts returns record positions whose rounded cents are within one
// of cents, in record order.
func nearbyAmounts(byCents map[int64][]int, cents int64) []int {
	var out []int
	for c := cents - 1; c <= cents+1; c++ {
		out = append(out, byCents[c]...)
	}
	sort.Ints(out)
	return out
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// IndexSet is a set of candidate positions.
type IndexSet map[int]struct{}

// Has reports whether i is in the set.
func (s IndexSet) Has(i int) bool {
	_, ok := s[i]
	return ok
}

// Sorted returns the members in ascending order.
func (s IndexSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Fingerprint is the exact-match key used for duplicates within one upload.
func Fingerprint(tx mapper.MappedTransaction) string {
	return tx.Date + "|" + tx.Amount.StringFixed(2) + "|" + normalizer.NormalizeVendor(tx.Vendor)
}

// DetectInternalDuplicates returns the positions of candidates that repeat
// an earlier candidate's fingerprint. The first occurrence is never flagged.
func DetectInternalDuplicates(candidates []mapper.MappedTransaction) IndexSet {
	seen := make(map[string]struct{}, len(candidates))
	dupes := make(IndexSet)

	for i, tx := range candidates {
		key := Fingerprint(tx)
		if _, ok := seen[key]; ok {
			dupes[i] = struct{}{}
			continue
		}
		seen[key] = struct{}{}
	}

	return dupes
}
