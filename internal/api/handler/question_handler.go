package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/livequestions/ama-api/internal/core/ports"
)

// QuestionHandler exposes the question board. Domain errors are returned
// unchanged and mapped to status codes by the central error handler.
type QuestionHandler struct {
	service ports.QuestionService
}

func NewQuestionHandler(service ports.QuestionService) *QuestionHandler {
	return &QuestionHandler{service: service}
}

// List handles GET /questions.
//
// @Summary      List questions, most voted first
// @Tags         questions
// @Produce      json
// @Success      200  {object}  questionListResponse
// @Router       /questions [get]
func (h *QuestionHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, questionListResponse{Data: h.service.Questions()})
}

// Ask handles POST /questions.
//
// @Summary      Submit a question
// @Description  The text is rewritten for clarity when an improver is configured. The author's own vote is counted. Responds with the updated ranking and the created question.
// @Tags         questions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string      false  "Idempotency key to prevent duplicate submissions"
// @Param        body             body      askRequest  true   "Question"
// @Success      201              {object}  askResponse
// @Failure      400              {object}  errorResponse
// @Failure      401              {object}  errorResponse
// @Failure      403              {object}  errorResponse
// @Failure      500              {object}  errorResponse
// @Router       /questions [post]
func (h *QuestionHandler) Ask(c echo.Context) error {
	who, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req askRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	author, err := actingAs(who, req.Author)
	if err != nil {
		return err
	}

	q, err := h.service.SubmitQuestion(c.Request().Context(), ports.AskInput{
		Text:           req.Text,
		Author:         author,
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, askResponse{Data: h.service.Questions(), Question: q})
}

// Vote handles POST /questions/:id/vote.
//
// @Summary      Upvote a question
// @Tags         questions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string       true   "Question id"
// @Param        body  body      voteRequest  false  "Voter, defaults to the session name"
// @Success      200   {object}  questionListResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /questions/{id}/vote [post]
func (h *QuestionHandler) Vote(c echo.Context) error {
	who, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req voteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	voter, err := actingAs(who, req.Voter)
	if err != nil {
		return err
	}

	if err := h.service.SubmitVote(c.Request().Context(), c.Param("id"), voter); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, questionListResponse{Data: h.service.Questions()})
}

// Answer handles POST /questions/:id/answer.
//
// @Summary      Mark a question answered
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Question id"
// @Success      200  {object}  questionListResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /questions/{id}/answer [post]
func (h *QuestionHandler) Answer(c echo.Context) error {
	who, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	if err := h.service.SubmitMarkAnswered(c.Request().Context(), who, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, questionListResponse{Data: h.service.Questions()})
}

// Delete handles DELETE /questions/:id.
//
// @Summary      Delete a question
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Question id"
// @Success      200  {object}  questionListResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /questions/{id} [delete]
func (h *QuestionHandler) Delete(c echo.Context) error {
	who, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	if err := h.service.SubmitDelete(c.Request().Context(), who, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, questionListResponse{Data: h.service.Questions()})
}

// DeleteAll handles DELETE /questions.
//
// @Summary      Delete every question
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  questionListResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /questions [delete]
func (h *QuestionHandler) DeleteAll(c echo.Context) error {
	who, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	if err := h.service.SubmitDeleteAll(c.Request().Context(), who); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, questionListResponse{Data: h.service.Questions()})
}
