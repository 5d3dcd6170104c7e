package govapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agedcare/qi-submit/internal/platform/fhir"
	"github.com/agedcare/qi-submit/pkg/fhirmodels"
)

const (
	simulatorIssuer  = "qi-intake-simulator"
	defaultTokenTTL  = 15 * time.Minute
	canonicalBaseURL = fhirmodels.CanonicalBaseURL
)

var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonicalBaseURL+"/QuestionnaireResponse"))

type SimulatorConfig struct {
	ClientID         string
	SigningKey       []byte
	OrganizationID   string
	OrganizationName string
	ServiceIDs       []string
	QuestionnaireID  string
	TokenTTL         time.Duration
	Now              func() time.Time
}

// Simulator answers every intake endpoint in process. Given the same calls in
// the same order it produces the same ids and bodies; every well-formed call
// succeeds.
type Simulator struct {
	cfg SimulatorConfig

	mu   sync.Mutex
	seq  int
	docs map[string]*fhir.QuestionnaireResponse
}

func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "qi-submit"
	}
	return &Simulator{cfg: cfg, docs: make(map[string]*fhir.QuestionnaireResponse)}
}

// QuestionnaireURL is the canonical of the governing questionnaire definition.
func (s *Simulator) QuestionnaireURL() string {
	return QuestionnaireCanonical(s.cfg.QuestionnaireID)
}

func QuestionnaireCanonical(id string) string {
	return canonicalBaseURL + "/Questionnaire/" + id
}

func (s *Simulator) AccessToken(_ context.Context) (Reply[*Token], error) {
	now := s.cfg.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    simulatorIssuer,
		Subject:   s.cfg.ClientID,
		Audience:  jwt.ClaimStrings{canonicalBaseURL},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
	if err != nil {
		return Reply[*Token]{}, fmt.Errorf("sign access token: %w", err)
	}
	return Reply[*Token]{StatusCode: http.StatusOK, Body: &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.cfg.TokenTTL.Seconds()),
	}}, nil
}

func (s *Simulator) verify(token string) error {
	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return s.cfg.SigningKey, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(simulatorIssuer),
		jwt.WithAudience(canonicalBaseURL),
		jwt.WithTimeFunc(s.cfg.Now),
	)
	if err != nil {
		return &APIError{StatusCode: http.StatusUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

func (s *Simulator) Organizations(_ context.Context, token string) (Reply[*fhir.Bundle], error) {
	if err := s.verify(token); err != nil {
		return Reply[*fhir.Bundle]{}, err
	}
	org := fhir.Organization{
		ResourceType: "Organization",
		ID:           s.cfg.OrganizationID,
		Identifier:   []fhir.Identifier{{System: fhirmodels.OrganisationIDSystem, Value: s.cfg.OrganizationID}},
		Name:         s.cfg.OrganizationName,
		Active:       true,
	}
	return Reply[*fhir.Bundle]{
		StatusCode: http.StatusOK,
		Body:       fhir.NewSearchBundle([]interface{}{org}, canonicalBaseURL+PathOrganization, s.cfg.Now()),
	}, nil
}

func (s *Simulator) HealthcareServices(_ context.Context, token, organizationID string) (Reply[*fhir.Bundle], error) {
	if err := s.verify(token); err != nil {
		return Reply[*fhir.Bundle]{}, err
	}
	var resources []interface{}
	if organizationID == s.cfg.OrganizationID {
		for _, id := range s.cfg.ServiceIDs {
			resources = append(resources, fhir.HealthcareService{
				ResourceType: "HealthcareService",
				ID:           id,
				Identifier:   []fhir.Identifier{{System: fhirmodels.ServiceIDSystem, Value: id}},
				Name:         "Residential care service " + id,
				ProvidedBy:   &fhir.Reference{Reference: fhir.FormatReference("Organization", organizationID)},
				Active:       true,
			})
		}
	}
	url := canonicalBaseURL + PathHealthcareServices + "?organization=" + organizationID
	return Reply[*fhir.Bundle]{StatusCode: http.StatusOK, Body: fhir.NewSearchBundle(resources, url, s.cfg.Now())}, nil
}

func (s *Simulator) definition() fhir.Questionnaire {
	return fhir.Questionnaire{
		ResourceType: "Questionnaire",
		ID:           s.cfg.QuestionnaireID,
		URL:          s.QuestionnaireURL(),
		Name:         "QualityIndicatorProgram",
		Title:        "National Aged Care Mandatory Quality Indicator Program",
		Status:       fhirmodels.PublicationStatusActive,
	}
}

func (s *Simulator) Questionnaires(_ context.Context, token string) (Reply[*fhir.Bundle], error) {
	if err := s.verify(token); err != nil {
		return Reply[*fhir.Bundle]{}, err
	}
	return Reply[*fhir.Bundle]{
		StatusCode: http.StatusOK,
		Body:       fhir.NewSearchBundle([]interface{}{s.definition()}, canonicalBaseURL+PathQuestionnaire, s.cfg.Now()),
	}, nil
}

func (s *Simulator) Questionnaire(_ context.Context, token, id string) (Reply[*fhir.Questionnaire], error) {
	if err := s.verify(token); err != nil {
		return Reply[*fhir.Questionnaire]{}, err
	}
	if id != s.cfg.QuestionnaireID {
		return Reply[*fhir.Questionnaire]{}, &APIError{StatusCode: http.StatusNotFound, Message: "Questionnaire/" + id + " not found"}
	}
	q := s.definition()
	return Reply[*fhir.Questionnaire]{StatusCode: http.StatusOK, Body: &q}, nil
}

func (s *Simulator) CreateResponse(_ context.Context, token string, doc *fhir.QuestionnaireResponse) (Reply[*fhir.QuestionnaireResponse], error) {
	if err := s.verify(token); err != nil {
		return Reply[*fhir.QuestionnaireResponse]{}, err
	}
	if doc.ID != nil {
		return Reply[*fhir.QuestionnaireResponse]{}, &APIError{StatusCode: http.StatusBadRequest, Message: "id must not be set on create"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	subject := ""
	if doc.Subject != nil {
		subject = doc.Subject.Reference
	}
	id := uuid.NewSHA1(documentNamespace, []byte(fmt.Sprintf("%s#%d", subject, s.seq))).String()

	stored := s.stamp(doc, id, 1)
	s.docs[id] = stored
	return Reply[*fhir.QuestionnaireResponse]{StatusCode: http.StatusCreated, Body: cloneDoc(stored)}, nil
}

func (s *Simulator) ReadResponse(_ context.Context, token, id string) (Reply[*fhir.QuestionnaireResponse], error) {
	if err := s.verify(token); err != nil {
		return Reply[*fhir.QuestionnaireResponse]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return Reply[*fhir.QuestionnaireResponse]{}, &APIError{StatusCode: http.StatusNotFound, Message: "QuestionnaireResponse/" + id + " not found"}
	}
	return Reply[*fhir.QuestionnaireResponse]{StatusCode: http.StatusOK, Body: cloneDoc(doc)}, nil
}

func (s *Simulator) PatchResponse(_ context.Context, token, id string, doc *fhir.QuestionnaireResponse, h Headers) (Reply[*fhir.QuestionnaireResponse], error) {
	if err := s.verify(token); err != nil {
		return Reply[*fhir.QuestionnaireResponse]{}, err
	}
	if strings.TrimSpace(h.UserEmail) == "" && strings.TrimSpace(h.FederatedID) == "" {
		return Reply[*fhir.QuestionnaireResponse]{}, &APIError{StatusCode: http.StatusForbidden, Message: "X-User-Email or X-Federated-Id is required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[id]
	if !ok {
		return Reply[*fhir.QuestionnaireResponse]{}, &APIError{StatusCode: http.StatusNotFound, Message: "QuestionnaireResponse/" + id + " not found"}
	}
	version := 1
	if cur.Meta != nil && cur.Meta.VersionID != "" {
		v, err := strconv.Atoi(cur.Meta.VersionID)
		if err != nil {
			return Reply[*fhir.QuestionnaireResponse]{}, &APIError{StatusCode: http.StatusInternalServerError, Message: "stored QuestionnaireResponse/" + id + " has a corrupt versionId"}
		}
		version = v
	}
	stored := s.stamp(doc, id, version+1)
	s.docs[id] = stored
	return Reply[*fhir.QuestionnaireResponse]{StatusCode: http.StatusOK, Body: cloneDoc(stored)}, nil
}

// stamp copies doc and applies the server-assigned id and meta.
func (s *Simulator) stamp(doc *fhir.QuestionnaireResponse, id string, version int) *fhir.QuestionnaireResponse {
	out := cloneDoc(doc)
	out.ID = &id
	now := s.cfg.Now().UTC()
	meta := fhir.Meta{VersionID: fmt.Sprintf("%d", version), LastUpdated: &now}
	if doc.Meta != nil {
		meta.Tag = append([]fhir.Coding(nil), doc.Meta.Tag...)
	}
	out.Meta = &meta
	return out
}

func cloneDoc(doc *fhir.QuestionnaireResponse) *fhir.QuestionnaireResponse {
	c := *doc
	if doc.ID != nil {
		id := *doc.ID
		c.ID = &id
	}
	if doc.Meta != nil {
		m := *doc.Meta
		m.Tag = append([]fhir.Coding(nil), doc.Meta.Tag...)
		c.Meta = &m
	}
	c.Item = append([]fhir.QuestionnaireResponseItem(nil), doc.Item...)
	return &c
}
