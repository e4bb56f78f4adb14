package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/livequestions/ama-api/internal/core/domain"
	"github.com/livequestions/ama-api/internal/core/ports"
)

type stubQuestionService struct {
	questions []domain.Question

	asked    []ports.AskInput
	askErr   error
	votes    []string
	voteErr  error
	answered []string
	deleted  []string
	cleared  int
	adminErr error
}

func (s *stubQuestionService) Questions() []domain.Question { return s.questions }

func (s *stubQuestionService) SubmitQuestion(_ context.Context, in ports.AskInput) (domain.Question, error) {
	s.asked = append(s.asked, in)
	if s.askErr != nil {
		return domain.Question{}, s.askErr
	}
	q := domain.Question{ID: "q1", Text: in.Text, Author: in.Author, Votes: 1, Voters: []string{in.Author}, Timestamp: 1}
	s.questions = append(s.questions, q)
	return q, nil
}

func (s *stubQuestionService) SubmitVote(_ context.Context, id, voter string) error {
	s.votes = append(s.votes, id+":"+voter)
	return s.voteErr
}

func (s *stubQuestionService) SubmitMarkAnswered(_ context.Context, _ domain.Identity, id string) error {
	s.answered = append(s.answered, id)
	return s.adminErr
}

func (s *stubQuestionService) SubmitDelete(_ context.Context, _ domain.Identity, id string) error {
	s.deleted = append(s.deleted, id)
	return s.adminErr
}

func (s *stubQuestionService) SubmitDeleteAll(context.Context, domain.Identity) error {
	s.cleared++
	return s.adminErr
}

func withIdentity(c echo.Context, name, role string) echo.Context {
	c.Set("name", name)
	c.Set("role", role)
	return c
}

func TestQuestionHandler_List(t *testing.T) {
	svc := &stubQuestionService{questions: []domain.Question{{ID: "b", Votes: 2}, {ID: "a", Votes: 1}}}
	handler := NewQuestionHandler(svc)

	c, rec := newJSONContext(http.MethodGet, "/questions", "")
	if err := handler.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp questionListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Data) != 2 || resp.Data[0].ID != "b" {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestQuestionHandler_Ask_DefaultsAuthorToSession(t *testing.T) {
	svc := &stubQuestionService{questions: []domain.Question{{ID: "q0", Votes: 3}}}
	handler := NewQuestionHandler(svc)

	c, rec := newJSONContext(http.MethodPost, "/questions", `{"text":"why go?"}`)
	c.Request().Header.Set("Idempotency-Key", "k-1")
	withIdentity(c, "alice", domain.RoleParticipant)

	if err := handler.Ask(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if len(svc.asked) != 1 {
		t.Fatalf("expected one submission, got %d", len(svc.asked))
	}
	in := svc.asked[0]
	if in.Author != "alice" || in.Text != "why go?" || in.IdempotencyKey != "k-1" {
		t.Fatalf("unexpected input: %+v", in)
	}

	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Data) != 2 || resp.Data[0].ID != "q0" || resp.Data[1].ID != "q1" {
		t.Fatalf("expected the updated collection, got %+v", resp.Data)
	}
	if resp.Question.ID != "q1" || resp.Question.Votes != 1 {
		t.Fatalf("unexpected created question: %+v", resp.Question)
	}
}

func TestQuestionHandler_Ask_ImpersonationForbidden(t *testing.T) {
	svc := &stubQuestionService{}
	handler := NewQuestionHandler(svc)

	c, _ := newJSONContext(http.MethodPost, "/questions", `{"text":"hi","author":"bob"}`)
	withIdentity(c, "alice", domain.RoleParticipant)

	if err := handler.Ask(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(svc.asked) != 0 {
		t.Fatalf("service must not be called")
	}
}

func TestQuestionHandler_Ask_BlankText(t *testing.T) {
	handler := NewQuestionHandler(&stubQuestionService{})

	c, _ := newJSONContext(http.MethodPost, "/questions", `{"text":"  "}`)
	withIdentity(c, "alice", domain.RoleParticipant)

	var he *echo.HTTPError
	if err := handler.Ask(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}

func TestQuestionHandler_Ask_MissingIdentity(t *testing.T) {
	handler := NewQuestionHandler(&stubQuestionService{})

	c, _ := newJSONContext(http.MethodPost, "/questions", `{"text":"hi"}`)

	var he *echo.HTTPError
	if err := handler.Ask(c); !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func TestQuestionHandler_Vote(t *testing.T) {
	svc := &stubQuestionService{questions: []domain.Question{{ID: "q1", Votes: 2}}}
	handler := NewQuestionHandler(svc)

	c, rec := newJSONContext(http.MethodPost, "/questions/q1/vote", `{}`)
	c.SetParamNames("id")
	c.SetParamValues("q1")
	withIdentity(c, "bob", domain.RoleParticipant)

	if err := handler.Vote(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.votes) != 1 || svc.votes[0] != "q1:bob" {
		t.Fatalf("unexpected votes: %v", svc.votes)
	}
}

func TestQuestionHandler_Vote_PropagatesDomainError(t *testing.T) {
	svc := &stubQuestionService{voteErr: domain.ErrAlreadyVoted}
	handler := NewQuestionHandler(svc)

	c, _ := newJSONContext(http.MethodPost, "/questions/q1/vote", `{"voter":"bob"}`)
	c.SetParamNames("id")
	c.SetParamValues("q1")
	withIdentity(c, "bob", domain.RoleParticipant)

	if err := handler.Vote(c); !errors.Is(err, domain.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
}

func TestQuestionHandler_AdminOperations(t *testing.T) {
	svc := &stubQuestionService{}
	handler := NewQuestionHandler(svc)

	c, rec := newJSONContext(http.MethodPost, "/questions/q1/answer", "")
	c.SetParamNames("id")
	c.SetParamValues("q1")
	withIdentity(c, "admin", domain.RoleAdmin)
	if err := handler.Answer(c); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("answer: err=%v code=%d", err, rec.Code)
	}

	c, rec = newJSONContext(http.MethodDelete, "/questions/q1", "")
	c.SetParamNames("id")
	c.SetParamValues("q1")
	withIdentity(c, "admin", domain.RoleAdmin)
	if err := handler.Delete(c); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("delete: err=%v code=%d", err, rec.Code)
	}

	c, rec = newJSONContext(http.MethodDelete, "/questions", "")
	withIdentity(c, "admin", domain.RoleAdmin)
	if err := handler.DeleteAll(c); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("delete all: err=%v code=%d", err, rec.Code)
	}

	if len(svc.answered) != 1 || len(svc.deleted) != 1 || svc.cleared != 1 {
		t.Fatalf("unexpected calls: answered=%v deleted=%v cleared=%d", svc.answered, svc.deleted, svc.cleared)
	}
}

func TestQuestionHandler_Delete_PropagatesForbidden(t *testing.T) {
	svc := &stubQuestionService{adminErr: domain.ErrForbidden}
	handler := NewQuestionHandler(svc)

	c, _ := newJSONContext(http.MethodDelete, "/questions/q1", "")
	c.SetParamNames("id")
	c.SetParamValues("q1")
	withIdentity(c, "alice", domain.RoleParticipant)

	if err := handler.Delete(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
