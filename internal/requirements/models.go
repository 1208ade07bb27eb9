// Package requirements consolidates per-combination requirement lists into a
// single deduplicated checklist.
package requirements

import "strings"

// Applicability restricts a requirement to one role within a couple. The
// zero value applies to everyone.
type Applicability string

const (
	ApplicabilityAny     Applicability = ""
	ApplicabilityTitular Applicability = "titular"
	ApplicabilitySpouse  Applicability = "spouse"
)

// IsValid reports whether a is a known applicability tag.
func (a Applicability) IsValid() bool {
	switch a {
	case ApplicabilityAny, ApplicabilityTitular, ApplicabilitySpouse:
		return true
	}
	return false
}

// Requirement is one document type a party must supply.
type Requirement struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Category      string        `json:"category"`
	Mandatory     bool          `json:"mandatory"`
	Applicability Applicability `json:"applicability,omitempty"`
	Note          string        `json:"note,omitempty"`
}

// AppliesTo reports whether the requirement binds a person acting in role.
func (r Requirement) AppliesTo(role Applicability) bool {
	return r.Applicability == ApplicabilityAny || r.Applicability == role
}

// key is the deduplication identity: id plus applicability tag.
func (r Requirement) key() string {
	return r.ID + "\x00" + string(r.Applicability)
}

// Alert is an advisory message produced by the rules service.
type Alert struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Complexity is the rules service's effort estimate for a combination.
type Complexity string

const (
	ComplexityLow        Complexity = "BAIXA"
	ComplexityMedium     Complexity = "MEDIA"
	ComplexityMediumHigh Complexity = "MEDIA_ALTA"
	ComplexityHigh       Complexity = "ALTA"
	ComplexityVeryHigh   Complexity = "MUITO_ALTA"
)

var complexityRank = map[Complexity]int{
	ComplexityLow:        0,
	ComplexityMedium:     1,
	ComplexityMediumHigh: 2,
	ComplexityHigh:       3,
	ComplexityVeryHigh:   4,
}

// Rank orders complexities; unknown values rank below BAIXA.
func (c Complexity) Rank() int {
	if r, ok := complexityRank[Complexity(strings.ToUpper(string(c)))]; ok {
		return r
	}
	return -1
}

// Combination is the rules output for one seller x buyer pairing.
type Combination struct {
	SellerID          string        `json:"sellerId"`
	BuyerID           string        `json:"buyerId"`
	SellerDocuments   []Requirement `json:"sellerDocuments"`
	BuyerDocuments    []Requirement `json:"buyerDocuments"`
	PropertyDocuments []Requirement `json:"propertyDocuments"`
	Alerts            []Alert       `json:"alerts"`
	Complexity        Complexity    `json:"complexity"`
	EstimatedDays     int           `json:"estimatedDays"`
}

// Summary aggregates effort across all combinations.
type Summary struct {
	MaxComplexity  Complexity `json:"complexidadeMaxima"`
	EstimatedDays  int        `json:"prazoEstimadoDias"`
	CompletionDate string     `json:"dataEstimadaConclusao"`
	TotalDocuments int        `json:"totalDocumentos"`
}

// Checklist is the consolidated, deduplicated requirement set for a deal.
type Checklist struct {
	Seller   []Requirement `json:"seller"`
	Buyer    []Requirement `json:"buyer"`
	Property []Requirement `json:"property"`
	Alerts   []Alert       `json:"alerts"`
	Summary  Summary       `json:"summary"`
}
