package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}

func newTestManager(t *testing.T) (*Manager, *fixedClock) {
	t.Helper()

	clock := &fixedClock{current: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	mgr, err := NewManager(Config{
		CookieName:  "test_session",
		HashKey:     []byte("12345678901234567890123456789012"),
		BlockKey:    []byte("abcdefghijklmnopqrstuv0123456789"),
		IdleTimeout: 10 * time.Minute,
		Lifetime:    2 * time.Hour,
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return mgr, clock
}

func TestManager_NewSessionLifecycle(t *testing.T) {
	mgr, clock := newTestManager(t)

	sess, err := mgr.Load(httptest.NewRequest(http.MethodGet, "/pos", nil))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if sess.ID() == "" {
		t.Fatalf("expected session ID")
	}
	if !sess.CreatedAt().Equal(clock.current) {
		t.Fatalf("unexpected CreatedAt: %v", sess.CreatedAt())
	}

	sess.SetUser(&User{UID: "7", Name: "Ana", Roles: []string{"cashier"}, CashierID: 7, StoreID: 3, StoreName: "Main St"})
	sess.SetToken("tok-123")
	sess.AddFlash(FlashSuccess, "Sale #42 completed")
	token, err := sess.EnsureCSRFToken()
	if err != nil || token == "" {
		t.Fatalf("expected csrf token: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := mgr.Save(rec, sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cookie := findCookie(rec.Result().Cookies(), "test_session")
	if cookie == nil {
		t.Fatalf("expected session cookie to be set")
	}
	if !cookie.HttpOnly {
		t.Fatalf("expected http-only cookie")
	}

	clock.current = clock.current.Add(5 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/pos", nil)
	req.AddCookie(cookie)
	sess2, err := mgr.Load(req)
	if err != nil {
		t.Fatalf("Load existing error: %v", err)
	}
	if sess2.ID() != sess.ID() {
		t.Fatalf("expected same session id")
	}
	if u := sess2.User(); u == nil || u.StoreID != 3 || u.CashierID != 7 {
		t.Fatalf("expected user to persist, got %+v", u)
	}
	if sess2.Token() != "tok-123" {
		t.Fatalf("expected token to persist")
	}
	if sess2.CSRFToken() != token {
		t.Fatalf("expected csrf token to persist")
	}

	flashes := sess2.PopFlashes()
	if len(flashes) != 1 || flashes[0].Message != "Sale #42 completed" || flashes[0].Kind != FlashSuccess {
		t.Fatalf("unexpected flashes: %+v", flashes)
	}
	if again := sess2.PopFlashes(); again != nil {
		t.Fatalf("expected flashes to be consumed, got %+v", again)
	}
}

func TestManager_IdleTimeout(t *testing.T) {
	mgr, clock := newTestManager(t)
	sess, _ := mgr.Load(httptest.NewRequest(http.MethodGet, "/pos", nil))
	rec := httptest.NewRecorder()
	if err := mgr.Save(rec, sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cookie := findCookie(rec.Result().Cookies(), "test_session")

	clock.current = clock.current.Add(20 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/pos", nil)
	req.AddCookie(cookie)
	if _, err := mgr.Load(req); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestManager_TamperedCookieStartsFresh(t *testing.T) {
	mgr, _ := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/pos", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "garbage"})
	sess, err := mgr.Load(req)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if sess.User() != nil || !sess.Dirty() {
		t.Fatalf("expected fresh session")
	}
}

func TestManager_Destroy(t *testing.T) {
	mgr, _ := newTestManager(t)
	sess, _ := mgr.Load(httptest.NewRequest(http.MethodGet, "/pos", nil))
	rec := httptest.NewRecorder()
	sess.Destroy()
	if err := mgr.Save(rec, sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cookie := findCookie(rec.Result().Cookies(), "test_session")
	if cookie == nil || cookie.MaxAge != -1 {
		t.Fatalf("expected session cookie cleared")
	}
}

func TestNewManagerRejectsBadKeys(t *testing.T) {
	if _, err := NewManager(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for missing hash key, got %v", err)
	}
	if _, err := NewManager(Config{HashKey: []byte("x"), BlockKey: []byte("short")}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for bad block key, got %v", err)
	}
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
