package fhir

import (
	"time"
)

type Meta struct {
	VersionID   string     `json:"versionId,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	Tag         []Coding   `json:"tag,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Organization is the provider organisation returned by the Providers API.
type Organization struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Name         string       `json:"name"`
	Active       bool         `json:"active"`
}

// HealthcareService is a service-delivery entity (a residential aged-care
// service) operated by an Organization.
type HealthcareService struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Name         string       `json:"name"`
	ProvidedBy   *Reference   `json:"providedBy,omitempty"`
	Active       bool         `json:"active"`
}

// QuestionnaireResponse is the structured submission artifact. ID is a
// pointer so a document built before the first create serialises "id": null.
type QuestionnaireResponse struct {
	ResourceType  string                      `json:"resourceType"`
	ID            *string                     `json:"id"`
	Meta          *Meta                       `json:"meta,omitempty"`
	Status        string                      `json:"status"`
	Questionnaire string                      `json:"questionnaire"`
	Subject       *Reference                  `json:"subject,omitempty"`
	Authored      string                      `json:"authored,omitempty"`
	Author        *Reference                  `json:"author,omitempty"`
	Item          []QuestionnaireResponseItem `json:"item"`
}

type QuestionnaireResponseItem struct {
	LinkID string                        `json:"linkId"`
	Text   string                        `json:"text,omitempty"`
	Item   []QuestionnaireResponseItem   `json:"item,omitempty"`
	Answer []QuestionnaireResponseAnswer `json:"answer,omitempty"`
}

// QuestionnaireResponseAnswer carries exactly one of its value fields.
type QuestionnaireResponseAnswer struct {
	ValueInteger *int    `json:"valueInteger,omitempty"`
	ValueBoolean *bool   `json:"valueBoolean,omitempty"`
	ValueDate    *string `json:"valueDate,omitempty"`
	ValueString  *string `json:"valueString,omitempty"`
}

// Tag returns the first meta tag with the given system.
func (qr *QuestionnaireResponse) Tag(system string) (Coding, bool) {
	if qr.Meta == nil {
		return Coding{}, false
	}
	for _, t := range qr.Meta.Tag {
		if t.System == system {
			return t, true
		}
	}
	return Coding{}, false
}

// Questionnaire is the governing questionnaire definition.
type Questionnaire struct {
	ResourceType string              `json:"resourceType"`
	ID           string              `json:"id"`
	URL          string              `json:"url"`
	Name         string              `json:"name"`
	Title        string              `json:"title,omitempty"`
	Status       string              `json:"status"`
	Item         []QuestionnaireItem `json:"item,omitempty"`
}

type QuestionnaireItem struct {
	LinkID string              `json:"linkId"`
	Text   string              `json:"text,omitempty"`
	Type   string              `json:"type"`
	Item   []QuestionnaireItem `json:"item,omitempty"`
}
