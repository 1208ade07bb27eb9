package registry

import (
	"github.com/docsales/realstate-docgen-front-sub000/internal/document/models"
	"github.com/docsales/realstate-docgen-front-sub000/internal/requirements"
)

// RequirementStatus is one line of a fulfillment report.
type RequirementStatus struct {
	Requirement requirements.Requirement `json:"requirement"`
	Satisfied   bool                     `json:"satisfied"`
	LocalIDs    []models.LocalID         `json:"localIds"`
}

// Fulfillment reports which of a person's requirements are covered.
type Fulfillment struct {
	DealID           string                     `json:"dealId"`
	PersonID         string                     `json:"personId"`
	Role             requirements.Applicability `json:"role,omitempty"`
	Requirements     []RequirementStatus        `json:"requirements"`
	MissingMandatory int                        `json:"missingMandatory"`
	Complete         bool                       `json:"complete"`
}

// Fulfillment evaluates reqs for personID acting in role. Requirements bound
// to another role are skipped. A requirement is satisfied by any of the
// person's descriptors that satisfies its type and was validated.
func (r *Registry) Fulfillment(dealID, personID string, role requirements.Applicability, reqs []requirements.Requirement) *Fulfillment {
	owned := r.ListByPerson(dealID, personID)
	report := &Fulfillment{
		DealID:       dealID,
		PersonID:     personID,
		Role:         role,
		Requirements: []RequirementStatus{},
	}
	for _, req := range reqs {
		if !req.AppliesTo(role) {
			continue
		}
		t := normalizeType(models.DocumentType(req.ID))
		line := RequirementStatus{Requirement: req, LocalIDs: []models.LocalID{}}
		for _, d := range owned {
			if d.Satisfies(t) {
				line.LocalIDs = append(line.LocalIDs, d.LocalID)
				if d.Validated == models.ValidationValid {
					line.Satisfied = true
				}
			}
		}
		if req.Mandatory && !line.Satisfied {
			report.MissingMandatory++
		}
		report.Requirements = append(report.Requirements, line)
	}
	report.Complete = report.MissingMandatory == 0
	return report
}
