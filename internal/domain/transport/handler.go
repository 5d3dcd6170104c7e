package transport

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/agedcare/qi-submit/internal/domain/submission"
	"github.com/agedcare/qi-submit/internal/platform/auth"
	"github.com/agedcare/qi-submit/internal/platform/fhir"
	"github.com/agedcare/qi-submit/internal/platform/govapi"
)

type Handler struct {
	machine *Machine
}

func NewHandler(m *Machine) *Handler {
	return &Handler{machine: m}
}

// RegisterRoutes mounts the transport actions. The final update is open to
// every reader so the authorization rejection is reported by the machine.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("viewer", "editor", "submitter"))
	read.POST("/submissions/:id/review", h.Review)
	read.POST("/submissions/:id/submit", h.Submit)

	send := api.Group("", auth.RequireRole("editor", "submitter"))
	send.POST("/submissions/:id/lookup", h.LookupProvider)
	send.POST("/submissions/:id/definition", h.FetchQuestionnaire)
	send.POST("/submissions/:id/send", h.SendDraft)
}

func (h *Handler) LookupProvider(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid id"))
	}
	out, err := h.machine.LookupProvider(c.Request().Context(), id)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) FetchQuestionnaire(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid id"))
	}
	out, err := h.machine.FetchQuestionnaire(c.Request().Context(), id)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) SendDraft(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid id"))
	}
	out, err := h.machine.SendDraft(c.Request().Context(), id, auth.IdentityFromRequest(c))
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) Review(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid id"))
	}
	out, err := h.machine.Review(c.Request().Context(), id)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Submit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid id"))
	}
	out, err := h.machine.Finalize(c.Request().Context(), id, auth.IdentityFromRequest(c))
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ErrorResponse renders err as an OperationOutcome with the matching status.
func ErrorResponse(c echo.Context, err error) error {
	var te *Error
	if errors.As(err, &te) {
		switch te.Kind {
		case KindSequencing:
			return c.JSON(http.StatusConflict, fhir.ConflictOutcome(te.Message))
		case KindAuthorization:
			return c.JSON(http.StatusForbidden, fhir.ForbiddenOutcome(te.Message))
		case KindEligibility:
			return c.JSON(http.StatusUnprocessableEntity, fhir.BusinessRuleOutcome(te.Message, te.QuestionIDs))
		case KindLookup:
			return c.JSON(http.StatusNotFound, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeNotFound, te.Message))
		}
	}
	var ae *govapi.APIError
	switch {
	case errors.Is(err, submission.ErrNotFound):
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Submission", c.Param("id")))
	case errors.Is(err, submission.ErrVersionConflict):
		return c.JSON(http.StatusConflict, fhir.ConflictOutcome(err.Error()))
	case errors.As(err, &ae):
		return c.JSON(http.StatusBadGateway, fhir.ErrorOutcome(ae.Error()))
	}
	return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome(err.Error()))
}
