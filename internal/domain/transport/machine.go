package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agedcare/qi-submit/internal/domain/apicall"
	"github.com/agedcare/qi-submit/internal/domain/submission"
	"github.com/agedcare/qi-submit/internal/platform/auth"
	"github.com/agedcare/qi-submit/internal/platform/fhir"
	"github.com/agedcare/qi-submit/internal/platform/govapi"
)

// Outcome is the result of one transport action.
type Outcome struct {
	Submission      *submission.Submission      `json:"submission"`
	TransportStatus submission.TransportStatus  `json:"transport_status"`
	Scenario        *submission.Scenario        `json:"scenario,omitempty"`
	Organization    *fhir.Organization          `json:"organization,omitempty"`
	Services        []fhir.HealthcareService    `json:"healthcare_services,omitempty"`
	Questionnaire   *fhir.Questionnaire         `json:"questionnaire,omitempty"`
	Document        *fhir.QuestionnaireResponse `json:"document,omitempty"`
	Calls           []*apicall.Record           `json:"calls"`
}

// Machine drives the exchange with the intake API for a submission. Every
// call is recorded in the ledger; every precondition is checked before the
// first call of an action so a rejected action leaves no ledger entries.
type Machine struct {
	repo            submission.Repository
	ledger          apicall.Ledger
	api             govapi.Client
	questionnaireID string
	logger          zerolog.Logger
	now             func() time.Time
	locks           *submission.KeyedMutex
}

type Option func(*Machine)

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// WithLocks shares the per-submission lock with the submission service.
func WithLocks(l *submission.KeyedMutex) Option {
	return func(m *Machine) { m.locks = l }
}

func NewMachine(repo submission.Repository, ledger apicall.Ledger, api govapi.Client, questionnaireID string, opts ...Option) *Machine {
	m := &Machine{
		repo:            repo,
		ledger:          ledger,
		api:             api,
		questionnaireID: questionnaireID,
		logger:          zerolog.Nop(),
		now:             time.Now,
		locks:           submission.NewKeyedMutex(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// exchange collects the ledger records of one action.
type exchange struct {
	m     *Machine
	sub   uuid.UUID
	calls []*apicall.Record
}

func (m *Machine) begin(id uuid.UUID) *exchange {
	return &exchange{m: m, sub: id}
}

// log writes one ledger entry. apiErr is the error returned by the call, if
// any; the entry is written either way.
func (x *exchange) log(ctx context.Context, method, endpoint, request string, status int, response string, apiErr error, docID *string) error {
	rec := &apicall.Record{
		ID:              uuid.New(),
		SubmissionID:    x.sub,
		Timestamp:       x.m.now().UTC(),
		Endpoint:        endpoint,
		Method:          method,
		RequestSummary:  request,
		ResponseSummary: response,
		StatusCode:      status,
		Success:         apiErr == nil && status >= 200 && status < 300,
		DocumentID:      docID,
	}
	if apiErr != nil {
		var ae *govapi.APIError
		if errors.As(apiErr, &ae) {
			rec.StatusCode = ae.StatusCode
		}
		rec.ResponseSummary = apiErr.Error()
	}
	if err := x.m.ledger.Record(ctx, rec); err != nil {
		return fmt.Errorf("record %s %s: %w", method, endpoint, err)
	}
	x.calls = append(x.calls, rec)
	x.m.logger.Info().
		Str("submission_id", x.sub.String()).
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", rec.StatusCode).
		Bool("success", rec.Success).
		Msg("intake api call")
	return apiErr
}

func (m *Machine) load(ctx context.Context, id uuid.UUID) (*submission.Submission, error) {
	s, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load submission %s: %w", id, err)
	}
	return s, nil
}

const persistAttempts = 3

// persist applies the transport fields set by apply and stores s with
// compare-and-set, bumping the version by one. When only answers were edited
// since s was read, apply is replayed on a fresh copy so the edits are kept.
// Any transport change in between is a version conflict.
func (m *Machine) persist(ctx context.Context, s *submission.Submission, apply func(*submission.Submission)) (*submission.Submission, error) {
	expected := s.Version
	for attempt := 1; ; attempt++ {
		apply(s)
		s.Version = expected + 1
		s.UpdatedAt = m.now().UTC()
		err := m.repo.Update(ctx, s, expected)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, submission.ErrVersionConflict) || attempt == persistAttempts {
			return nil, fmt.Errorf("persist submission %s: %w", s.ID, err)
		}
		fresh, err := m.repo.GetByID(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("persist submission %s: %w", s.ID, err)
		}
		if fresh.Version != expected {
			return nil, fmt.Errorf("persist submission %s: %w", s.ID, submission.ErrVersionConflict)
		}
		m.logger.Warn().
			Str("submission_id", s.ID.String()).
			Int("revision", fresh.Revision).
			Msg("answers edited during transport, keeping them")
		s = fresh
	}
}

func (m *Machine) outcome(s *submission.Submission, x *exchange) *Outcome {
	return &Outcome{Submission: s, TransportStatus: s.TransportStatus(), Calls: x.calls}
}

// -- Steps --

func (x *exchange) acquireToken(ctx context.Context) (string, error) {
	reply, err := x.m.api.AccessToken(ctx)
	if err != nil {
		return "", x.log(ctx, http.MethodPost, govapi.PathAccessToken, "client_credentials grant", 0, "", err, nil)
	}
	resp := fmt.Sprintf("%s token issued, expires in %ds", reply.Body.TokenType, reply.Body.ExpiresIn)
	if err := x.log(ctx, http.MethodPost, govapi.PathAccessToken, "client_credentials grant", reply.StatusCode, resp, nil, nil); err != nil {
		return "", err
	}
	return reply.Body.AccessToken, nil
}

func (x *exchange) lookupOrganization(ctx context.Context, token string) (*fhir.Organization, error) {
	reply, err := x.m.api.Organizations(ctx, token)
	if err != nil {
		return nil, x.log(ctx, http.MethodGet, govapi.PathOrganization, "search organisation", 0, "", err, nil)
	}
	orgs, err := fhir.DecodeEntries[fhir.Organization](reply.Body)
	if err != nil {
		return nil, fmt.Errorf("decode organization bundle: %w", err)
	}
	if len(orgs) == 0 {
		_ = x.log(ctx, http.MethodGet, govapi.PathOrganization, "search organisation", reply.StatusCode, "no organisation returned", nil, nil)
		return nil, &Error{Kind: KindLookup, Message: "no organisation is registered for this client"}
	}
	org := orgs[0]
	resp := fmt.Sprintf("Organization/%s %s", org.ID, org.Name)
	if err := x.log(ctx, http.MethodGet, govapi.PathOrganization, "search organisation", reply.StatusCode, resp, nil, nil); err != nil {
		return nil, err
	}
	return &org, nil
}

func (x *exchange) lookupServices(ctx context.Context, token, organizationID string) ([]fhir.HealthcareService, error) {
	endpoint := govapi.PathHealthcareServices + "?organization=" + organizationID
	reply, err := x.m.api.HealthcareServices(ctx, token, organizationID)
	if err != nil {
		return nil, x.log(ctx, http.MethodGet, endpoint, "search services by organisation", 0, "", err, nil)
	}
	services, err := fhir.DecodeEntries[fhir.HealthcareService](reply.Body)
	if err != nil {
		return nil, fmt.Errorf("decode healthcare service bundle: %w", err)
	}
	resp := fmt.Sprintf("%d healthcare service(s)", len(services))
	if err := x.log(ctx, http.MethodGet, endpoint, "search services by organisation", reply.StatusCode, resp, nil, nil); err != nil {
		return nil, err
	}
	return services, nil
}

func (x *exchange) listQuestionnaires(ctx context.Context, token string) ([]fhir.Questionnaire, error) {
	reply, err := x.m.api.Questionnaires(ctx, token)
	if err != nil {
		return nil, x.log(ctx, http.MethodGet, govapi.PathQuestionnaire, "search questionnaires", 0, "", err, nil)
	}
	defs, err := fhir.DecodeEntries[fhir.Questionnaire](reply.Body)
	if err != nil {
		return nil, fmt.Errorf("decode questionnaire bundle: %w", err)
	}
	resp := fmt.Sprintf("%d questionnaire(s)", len(defs))
	if err := x.log(ctx, http.MethodGet, govapi.PathQuestionnaire, "search questionnaires", reply.StatusCode, resp, nil, nil); err != nil {
		return nil, err
	}
	return defs, nil
}

func (x *exchange) fetchQuestionnaire(ctx context.Context, token string) (*fhir.Questionnaire, error) {
	endpoint := govapi.PathQuestionnaire + "/" + x.m.questionnaireID
	reply, err := x.m.api.Questionnaire(ctx, token, x.m.questionnaireID)
	if err != nil {
		return nil, x.log(ctx, http.MethodGet, endpoint, "read questionnaire definition", 0, "", err, nil)
	}
	resp := fmt.Sprintf("Questionnaire/%s %s", reply.Body.ID, reply.Body.Status)
	if err := x.log(ctx, http.MethodGet, endpoint, "read questionnaire definition", reply.StatusCode, resp, nil, nil); err != nil {
		return nil, err
	}
	return reply.Body, nil
}

func (x *exchange) createResponse(ctx context.Context, token string, doc *fhir.QuestionnaireResponse) (*fhir.QuestionnaireResponse, error) {
	req := fmt.Sprintf("create %s response with %d indicator(s)", doc.Status, len(doc.Item))
	reply, err := x.m.api.CreateResponse(ctx, token, doc)
	if err != nil {
		return nil, x.log(ctx, http.MethodPost, govapi.PathQuestionnaireResponse, req, 0, "", err, nil)
	}
	resp := fmt.Sprintf("QuestionnaireResponse/%s created", *reply.Body.ID)
	if err := x.log(ctx, http.MethodPost, govapi.PathQuestionnaireResponse, req, reply.StatusCode, resp, nil, reply.Body.ID); err != nil {
		return nil, err
	}
	return reply.Body, nil
}

func (x *exchange) readResponse(ctx context.Context, token, docID string) (*fhir.QuestionnaireResponse, error) {
	endpoint := govapi.PathQuestionnaireResponse + "/" + docID
	reply, err := x.m.api.ReadResponse(ctx, token, docID)
	if err != nil {
		return nil, x.log(ctx, http.MethodGet, endpoint, "read response", 0, "", err, &docID)
	}
	resp := fmt.Sprintf("status %s", reply.Body.Status)
	if reply.Body.Meta != nil {
		resp += ", version " + reply.Body.Meta.VersionID
	}
	if err := x.log(ctx, http.MethodGet, endpoint, "read response", reply.StatusCode, resp, nil, &docID); err != nil {
		return nil, err
	}
	return reply.Body, nil
}

func (x *exchange) patchResponse(ctx context.Context, token string, doc *fhir.QuestionnaireResponse, h govapi.Headers) (*fhir.QuestionnaireResponse, error) {
	docID := *doc.ID
	endpoint := govapi.PathQuestionnaireResponse + "/" + docID
	req := fmt.Sprintf("update to %s", doc.Status)
	if tag, ok := doc.Tag(submission.ScenarioTagSystem); ok {
		req += " (" + tag.Code + ")"
	}
	reply, err := x.m.api.PatchResponse(ctx, token, docID, doc, h)
	if err != nil {
		return nil, x.log(ctx, http.MethodPatch, endpoint, req, 0, "", err, &docID)
	}
	resp := fmt.Sprintf("status %s", reply.Body.Status)
	if err := x.log(ctx, http.MethodPatch, endpoint, req, reply.StatusCode, resp, nil, &docID); err != nil {
		return nil, err
	}
	return reply.Body, nil
}

// -- Actions --

// LookupProvider acquires a token and resolves the organisation and its
// healthcare services.
func (m *Machine) LookupProvider(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	x := m.begin(id)
	token, err := x.acquireToken(ctx)
	if err != nil {
		return nil, err
	}
	org, err := x.lookupOrganization(ctx, token)
	if err != nil {
		return nil, err
	}
	services, err := x.lookupServices(ctx, token, org.ID)
	if err != nil {
		return nil, err
	}
	out := m.outcome(s, x)
	out.Organization = org
	out.Services = services
	return out, nil
}

// FetchQuestionnaire acquires a token, lists the published questionnaires and
// reads the governing definition. A definition missing from the list is a
// lookup error and is not read.
func (m *Machine) FetchQuestionnaire(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	x := m.begin(id)
	token, err := x.acquireToken(ctx)
	if err != nil {
		return nil, err
	}
	defs, err := x.listQuestionnaires(ctx, token)
	if err != nil {
		return nil, err
	}
	if !publishes(defs, m.questionnaireID) {
		return nil, &Error{Kind: KindLookup, Message: "questionnaire " + m.questionnaireID + " is not published by the intake API"}
	}
	q, err := x.fetchQuestionnaire(ctx, token)
	if err != nil {
		return nil, err
	}
	out := m.outcome(s, x)
	out.Questionnaire = q
	return out, nil
}

// SendDraft creates the document at the intake API with status in-progress.
// It is rejected once a document id exists.
func (m *Machine) SendDraft(ctx context.Context, id uuid.UUID, who auth.Identity) (*Outcome, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	s, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.DocumentID != nil {
		return nil, sequencingError("a response document already exists; review or submit it instead")
	}

	x := m.begin(id)
	token, err := x.acquireToken(ctx)
	if err != nil {
		return nil, err
	}
	org, err := x.lookupOrganization(ctx, token)
	if err != nil {
		return nil, err
	}
	services, err := x.lookupServices(ctx, token, org.ID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	scenario := submission.ClassifyScenario(s, now)
	doc := submission.BuildPayload(s, m.payloadOptions(s, services, who, submission.FhirInProgress, scenario, now))
	created, err := x.createResponse(ctx, token, doc)
	if err != nil {
		return nil, err
	}

	s, err = m.persist(context.WithoutCancel(ctx), s, func(cur *submission.Submission) {
		cur.DocumentID = created.ID
		cur.FhirStatus = submission.FhirInProgress
		cur.Status = submission.StatusDraftSent
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info().Str("submission_id", id.String()).Str("document_id", *s.DocumentID).Msg("draft sent")

	out := m.outcome(s, x)
	out.Scenario = &scenario
	out.Organization = org
	out.Services = services
	out.Document = created
	return out, nil
}

// Review reads the current document back from the intake API.
func (m *Machine) Review(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.DocumentID == nil {
		return nil, &Error{Kind: KindLookup, Message: "no response document has been created for this submission"}
	}

	x := m.begin(id)
	token, err := x.acquireToken(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := x.readResponse(ctx, token, *s.DocumentID)
	if err != nil {
		return nil, err
	}
	out := m.outcome(s, x)
	out.Document = doc
	return out, nil
}

// Finalize performs the final update. The document must exist, the identity
// must be an authorized submitter and every question must be answered without
// errors; all three are checked before any call is made. The target FHIR
// status and the lifecycle label come from the scenario at the time of the
// call.
func (m *Machine) Finalize(ctx context.Context, id uuid.UUID, who auth.Identity) (*Outcome, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	s, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.DocumentID == nil {
		return nil, sequencingError("send a draft before submitting")
	}
	if !who.CanSubmit() {
		return nil, &Error{
			Kind:    KindAuthorization,
			Message: "submit permission and an X-User-Email or X-Federated-Id header are required",
		}
	}
	if blockers := submission.EligibilityBlockers(s); len(blockers) > 0 {
		return nil, &Error{
			Kind:        KindEligibility,
			Message:     "all questions must be answered without errors",
			QuestionIDs: blockers,
		}
	}

	x := m.begin(id)
	token, err := x.acquireToken(ctx)
	if err != nil {
		return nil, err
	}
	current, err := x.readResponse(ctx, token, *s.DocumentID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	scenario := submission.ClassifyScenario(s, now)
	opts := m.payloadOptions(s, nil, who, scenario.TargetStatus, scenario, now)
	if current.Subject != nil {
		if _, sid, ok := fhir.ParseReference(current.Subject.Reference); ok {
			opts.SubjectID = sid
			opts.SubjectDisplay = current.Subject.Display
		}
	}
	doc := submission.BuildPayload(s, opts)
	patched, err := x.patchResponse(ctx, token, doc, govapi.Headers{UserEmail: who.Email, FederatedID: who.FederatedID})
	if err != nil {
		return nil, err
	}

	// The PATCH has been accepted; the local state must follow it even if
	// the caller has gone away.
	submitter := who.Display()
	stamped := now.UTC()
	s, err = m.persist(context.WithoutCancel(ctx), s, func(cur *submission.Submission) {
		cur.FhirStatus = scenario.TargetStatus
		cur.Status = scenario.SubmissionStatus
		cur.LastSubmittedDate = &stamped
		cur.LastSubmittedBy = &submitter
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info().
		Str("submission_id", id.String()).
		Str("scenario", string(scenario.Kind)).
		Str("fhir_status", string(s.FhirStatus)).
		Msg("submission finalized")

	out := m.outcome(s, x)
	out.Scenario = &scenario
	out.Document = patched
	return out, nil
}

func (m *Machine) payloadOptions(s *submission.Submission, services []fhir.HealthcareService, who auth.Identity, status submission.FhirStatus, scenario submission.Scenario, now time.Time) submission.PayloadOptions {
	opts := submission.PayloadOptions{
		Status:        status,
		Scenario:      scenario,
		Questionnaire: govapi.QuestionnaireCanonical(m.questionnaireID),
		AuthorID:      who.UserID,
		AuthorDisplay: who.Display(),
		Authored:      now,
	}
	if svc, ok := matchService(services, s.FacilityID); ok {
		opts.SubjectID = svc.ID
		opts.SubjectDisplay = svc.Name
	}
	return opts
}

func publishes(defs []fhir.Questionnaire, id string) bool {
	for _, d := range defs {
		if d.ID == id {
			return true
		}
	}
	return false
}

// matchService picks the service whose id or identifier equals the facility.
func matchService(services []fhir.HealthcareService, facilityID string) (fhir.HealthcareService, bool) {
	for _, svc := range services {
		if svc.ID == facilityID {
			return svc, true
		}
		for _, ident := range svc.Identifier {
			if ident.Value == facilityID {
				return svc, true
			}
		}
	}
	return fhir.HealthcareService{}, false
}
