// Package govapi models the government quality-indicator intake API. The only
// implementation is a deterministic in-process Simulator; a networked client
// must keep the same method contract.
package govapi

import (
	"context"
	"fmt"

	"github.com/agedcare/qi-submit/internal/platform/fhir"
)

// Endpoint paths of the intake API.
const (
	PathAccessToken           = "/authentication/oauth2/AccessToken"
	PathOrganization          = "/Providers/Organization"
	PathHealthcareServices    = "/Providers/HealthcareServices"
	PathQuestionnaire         = "/quality-indicators/Questionnaire"
	PathQuestionnaireResponse = "/quality-indicators/QuestionnaireResponse"
)

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Headers are the identity headers required on the final PATCH.
type Headers struct {
	UserEmail   string
	FederatedID string
}

// Reply pairs a decoded body with the HTTP status the endpoint answered with.
type Reply[T any] struct {
	StatusCode int
	Body       T
}

// APIError is a non-2xx answer from the intake API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("intake api: %d %s", e.StatusCode, e.Message)
}

type Client interface {
	AccessToken(ctx context.Context) (Reply[*Token], error)
	Organizations(ctx context.Context, token string) (Reply[*fhir.Bundle], error)
	HealthcareServices(ctx context.Context, token, organizationID string) (Reply[*fhir.Bundle], error)
	Questionnaires(ctx context.Context, token string) (Reply[*fhir.Bundle], error)
	Questionnaire(ctx context.Context, token, id string) (Reply[*fhir.Questionnaire], error)
	CreateResponse(ctx context.Context, token string, doc *fhir.QuestionnaireResponse) (Reply[*fhir.QuestionnaireResponse], error)
	ReadResponse(ctx context.Context, token, id string) (Reply[*fhir.QuestionnaireResponse], error)
	PatchResponse(ctx context.Context, token, id string, doc *fhir.QuestionnaireResponse, h Headers) (Reply[*fhir.QuestionnaireResponse], error)
}
