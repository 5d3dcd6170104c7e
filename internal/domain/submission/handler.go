package submission

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/agedcare/qi-submit/internal/platform/auth"
	"github.com/agedcare/qi-submit/internal/platform/fhir"
	"github.com/agedcare/qi-submit/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("viewer", "editor", "submitter"))
	read.GET("/submissions", h.ListSubmissions)
	read.GET("/submissions/:id", h.GetSubmission)
	read.GET("/submissions/:id/stats", h.GetStats)
	read.GET("/submissions/:id/scenario", h.GetScenario)
	read.GET("/submissions/:id/payload", h.GetPayload)

	write := api.Group("", auth.RequireRole("editor", "submitter"))
	write.POST("/submissions", h.CreateSubmission)
	write.PUT("/submissions/:id/questions/:linkId", h.SetAnswer)
}

// submissionView adds the derived transport status to the stored fields.
type submissionView struct {
	*Submission
	TransportStatus TransportStatus `json:"transport_status"`
}

func view(s *Submission) submissionView {
	return submissionView{Submission: s, TransportStatus: s.TransportStatus()}
}

func (h *Handler) CreateSubmission(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome(err.Error()))
	}
	sub, err := h.svc.CreateSubmission(c.Request().Context(), req, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ValidationOutcome("Submission", err.Error()))
	}
	return c.JSON(http.StatusCreated, view(sub))
}

func (h *Handler) GetSubmission(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid id"))
	}
	sub, err := h.svc.GetSubmission(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, view(sub))
}

func (h *Handler) ListSubmissions(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSubmissions(c.Request().Context(), c.QueryParam("facility"), pg.Limit, pg.Offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome(err.Error()))
	}
	views := make([]submissionView, 0, len(items))
	for _, s := range items {
		views = append(views, view(s))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) SetAnswer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid id"))
	}
	var req AnswerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome(err.Error()))
	}
	sub, err := h.svc.SetAnswer(c.Request().Context(), id, c.Param("linkId"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, view(sub))
}

func (h *Handler) GetStats(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid id"))
	}
	st, err := h.svc.Stats(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) GetScenario(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid id"))
	}
	sc, err := h.svc.Scenario(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *Handler) GetPayload(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid id"))
	}
	who := auth.IdentityFromRequest(c)
	doc, err := h.svc.Preview(c.Request().Context(), id, who.UserID, who.Display())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

func errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrQuestionNotFound):
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Question", c.Param("linkId")))
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Submission", c.Param("id")))
	case errors.Is(err, ErrVersionConflict):
		return c.JSON(http.StatusConflict, fhir.ConflictOutcome(err.Error()))
	}
	return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome(err.Error()))
}
