package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"fargoat/internal/quest"
)

type stubSubmitter struct {
	calls    int
	err      error
	deadline bool
}

func (s *stubSubmitter) SubmitQuest(ctx context.Context, sub *quest.Submission) (json.RawMessage, error) {
	s.calls++
	_, s.deadline = ctx.Deadline()
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func newTestSessions(t *testing.T, max int, sub quest.Submitter) *SessionService {
	t.Helper()
	s, err := NewSessionService(max, sub, time.Second, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create session service: %v", err)
	}
	return s
}

func fillCommunityForm(t *testing.T, e *quest.Engine) {
	t.Helper()
	values := []struct {
		field quest.Field
		value string
	}{
		{quest.FieldType, "DAU"},
		{quest.FieldCategory, "Send It"},
		{quest.FieldName, "Daily Crew"},
		{quest.FieldDescription, "Bring five thousand users every day"},
		{quest.FieldPoints, "250"},
		{quest.FieldWebsite, "https://example.org"},
		{quest.FieldDuration, "7d"},
		{quest.FieldRequiredMetric, "5000"},
		{quest.FieldContractAddress, "0xABC"},
		{quest.FieldFunctionABI, "transfer(address,uint256)"},
	}
	for _, v := range values {
		if err := e.UpdateField(v.field, v.value); err != nil {
			t.Fatalf("update %s: %v", v.field, err)
		}
	}
}

func TestSessionService_CreateGetDelete(t *testing.T) {
	s := newTestSessions(t, 10, nil)

	id, engine, err := s.Create(quest.RoleFounder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(id)
	if err != nil || got != engine {
		t.Fatalf("expected same engine, got %v %v", got, err)
	}
	if got.Role() != quest.RoleFounder {
		t.Errorf("expected founder session, got %s", got.Role())
	}

	if err := s.Delete(id); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSessionService_InvalidRole(t *testing.T) {
	s := newTestSessions(t, 10, nil)
	if _, _, err := s.Create(quest.Role("admin")); err == nil {
		t.Error("expected error for unknown role")
	}
	if s.Len() != 0 {
		t.Errorf("expected no sessions, got %d", s.Len())
	}
}

func TestSessionService_EvictsOldest(t *testing.T) {
	s := newTestSessions(t, 2, nil)

	first, _, _ := s.Create(quest.RoleCommunity)
	second, _, _ := s.Create(quest.RoleCommunity)

	// touch first so second becomes the oldest
	if _, err := s.Get(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Create(quest.RoleCommunity)

	if s.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", s.Len())
	}
	if _, err := s.Get(second); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected least recently used session evicted, got %v", err)
	}
	if _, err := s.Get(first); err != nil {
		t.Errorf("expected recently used session kept, got %v", err)
	}
}

func TestSessionService_Submit(t *testing.T) {
	sub := &stubSubmitter{}
	s := newTestSessions(t, 10, sub)

	id, engine, _ := s.Create(quest.RoleCommunity)
	fillCommunityForm(t, engine)

	resp, err := s.Submit(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp) != `{"ok":true}` {
		t.Errorf("unexpected response %s", resp)
	}
	if sub.calls != 1 || !sub.deadline {
		t.Errorf("expected one call with a deadline, got %d calls deadline=%v", sub.calls, sub.deadline)
	}
	if engine.State().Name != "" {
		t.Error("expected form reset after successful submit")
	}
}

func TestSessionService_SubmitIncomplete(t *testing.T) {
	sub := &stubSubmitter{}
	s := newTestSessions(t, 10, sub)

	id, _, _ := s.Create(quest.RoleFounder)

	_, err := s.Submit(context.Background(), id)
	var incomplete *quest.IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteError, got %v", err)
	}
	if sub.calls != 0 {
		t.Errorf("expected no backend call, got %d", sub.calls)
	}

	if _, err := s.Submit(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
