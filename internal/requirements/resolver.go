package requirements

import (
	"time"

	"github.com/docsales/realstate-docgen-front-sub000/pkg/platform/strings"
)

const dateLayout = "2006-01-02"

// Consolidate merges per-combination requirement lists into one checklist.
// Seller and buyer requirements are deduplicated by id and applicability; on
// collision the mandatory entry wins, in the position of the first occurrence.
// Property requirements come from the first combination.
func Consolidate(combos []Combination, now time.Time) (*Checklist, error) {
	if len(combos) == 0 {
		return nil, &EmptyChecklistInputError{}
	}

	var seller, buyer []Requirement
	var alerts []Alert
	maxComplexity := Complexity("")
	maxDays := 0
	for _, c := range combos {
		seller = append(seller, c.SellerDocuments...)
		buyer = append(buyer, c.BuyerDocuments...)
		alerts = append(alerts, c.Alerts...)
		if c.Complexity.Rank() > maxComplexity.Rank() {
			maxComplexity = c.Complexity
		}
		if c.EstimatedDays > maxDays {
			maxDays = c.EstimatedDays
		}
	}

	checklist := &Checklist{
		Seller:   dedupeRequirements(seller),
		Buyer:    dedupeRequirements(buyer),
		Property: dedupeRequirements(combos[0].PropertyDocuments),
		Alerts: strings.DedupeFunc(alerts, func(a Alert) string {
			return a.Message
		}, nil),
	}
	checklist.Summary = Summary{
		MaxComplexity:  maxComplexity,
		EstimatedDays:  maxDays,
		CompletionDate: now.AddDate(0, 0, maxDays).Format(dateLayout),
		TotalDocuments: countTypes(checklist.Seller, checklist.Buyer, checklist.Property),
	}
	ensureSlices(checklist)
	return checklist, nil
}

func dedupeRequirements(reqs []Requirement) []Requirement {
	return strings.DedupeFunc(reqs, Requirement.key, func(kept, dup Requirement) Requirement {
		if !kept.Mandatory && dup.Mandatory {
			return dup
		}
		return kept
	})
}

// countTypes counts distinct requirement ids, not per-party instances.
func countTypes(lists ...[]Requirement) int {
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, r := range list {
			seen[r.ID] = struct{}{}
		}
	}
	return len(seen)
}

func ensureSlices(c *Checklist) {
	if c.Seller == nil {
		c.Seller = []Requirement{}
	}
	if c.Buyer == nil {
		c.Buyer = []Requirement{}
	}
	if c.Property == nil {
		c.Property = []Requirement{}
	}
	if c.Alerts == nil {
		c.Alerts = []Alert{}
	}
}
