package fhirmodels

// Common FHIR value set constants used across the application.

// QuestionnaireResponseStatus values per FHIR R4.
const (
	QuestionnaireResponseStatusInProgress     = "in-progress"
	QuestionnaireResponseStatusCompleted      = "completed"
	QuestionnaireResponseStatusAmended        = "amended"
	QuestionnaireResponseStatusEnteredInError = "entered-in-error"
	QuestionnaireResponseStatusStopped        = "stopped"
)

// QuestionnaireItemType codes for the answer types the quality indicator
// program uses.
const (
	ItemTypeGroup   = "group"
	ItemTypeBoolean = "boolean"
	ItemTypeInteger = "integer"
	ItemTypeDate    = "date"
	ItemTypeString  = "string"
)

// PublicationStatus values per FHIR R4.
const (
	PublicationStatusDraft   = "draft"
	PublicationStatusActive  = "active"
	PublicationStatusRetired = "retired"
)

// Naming systems of the quality indicator intake API.
const (
	CanonicalBaseURL         = "https://qi.health.gov.au/fhir"
	OrganisationIDSystem     = CanonicalBaseURL + "/sid/organisation"
	ServiceIDSystem          = CanonicalBaseURL + "/sid/service"
	SubmissionScenarioSystem = "https://qi.health.gov.au/CodeSystem/submission-scenario"
)
