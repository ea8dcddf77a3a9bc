package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/gatehouse/internal/model"
)

// --- モック定義 ---

type mockProvider struct {
	authorizeURLFn func(state string) string
	exchangeFn     func(ctx context.Context, code string) (*Identity, error)
}

func (m *mockProvider) AuthorizeURL(state string) string {
	if m.authorizeURLFn != nil {
		return m.authorizeURLFn(state)
	}
	return ""
}

func (m *mockProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code)
	}
	return nil, nil
}

type mockDirectory struct {
	findOrCreateFn func(ctx context.Context, email, name string) (*model.User, error)
}

func (m *mockDirectory) FindOrCreate(ctx context.Context, email, name string) (*model.User, error) {
	if m.findOrCreateFn != nil {
		return m.findOrCreateFn(ctx, email, name)
	}
	return nil, nil
}

type recordingMetrics struct {
	successes []string
	failures  []string
}

func (r *recordingMetrics) RecordLoginSuccess(provider string) {
	r.successes = append(r.successes, provider)
}

func (r *recordingMetrics) RecordLoginFailure(provider string) {
	r.failures = append(r.failures, provider)
}

// --- compile-time interface checks ---
var _ Provider = (*mockProvider)(nil)
var _ UserDirectory = (*mockDirectory)(nil)
var _ MetricsRecorder = (*recordingMetrics)(nil)

func newRegistryWith(name string, p Provider) *Registry {
	r := NewRegistry()
	r.Register(name, p)
	return r
}

// --- テスト ---

func TestAuthorizeURL_KnownProvider(t *testing.T) {
	p := &mockProvider{
		authorizeURLFn: func(state string) string {
			return "https://idp.example.com/auth?state=" + state
		},
	}
	svc := NewService(newRegistryWith("google", p), &mockDirectory{}, nil)

	u, err := svc.AuthorizeURL("google", "test-state")
	if err != nil {
		t.Fatalf("AuthorizeURL() error = %v", err)
	}
	if u != "https://idp.example.com/auth?state=test-state" {
		t.Errorf("AuthorizeURL() = %q", u)
	}
}

func TestAuthorizeURL_UnknownProvider_ReturnsError(t *testing.T) {
	svc := NewService(NewRegistry(), &mockDirectory{}, nil)

	_, err := svc.AuthorizeURL("myspace", "state")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeProviderNotFound {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeProviderNotFound)
	}
}

func TestHandleCallback_Success_ResolvesUser(t *testing.T) {
	p := &mockProvider{
		exchangeFn: func(ctx context.Context, code string) (*Identity, error) {
			if code != "auth-code" {
				t.Errorf("code = %q, want auth-code", code)
			}
			return &Identity{Email: "a@b.com", Name: "A"}, nil
		},
	}
	dir := &mockDirectory{
		findOrCreateFn: func(ctx context.Context, email, name string) (*model.User, error) {
			if email != "a@b.com" || name != "A" {
				t.Errorf("FindOrCreate(%q, %q), want (a@b.com, A)", email, name)
			}
			return &model.User{ID: "user-1", Email: email, Name: name}, nil
		},
	}
	metrics := &recordingMetrics{}
	svc := NewService(newRegistryWith("google", p), dir, metrics)

	user, err := svc.HandleCallback(context.Background(), "google", "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if user.ID != "user-1" {
		t.Errorf("user ID = %q, want user-1", user.ID)
	}
	if len(metrics.successes) != 1 || metrics.successes[0] != "google" {
		t.Errorf("successes = %v, want [google]", metrics.successes)
	}
}

func TestHandleCallback_VerificationFailure_IsFatal(t *testing.T) {
	p := &mockProvider{
		exchangeFn: func(ctx context.Context, code string) (*Identity, error) {
			return nil, errors.New("invalid_grant")
		},
	}
	dirCalled := false
	dir := &mockDirectory{
		findOrCreateFn: func(ctx context.Context, email, name string) (*model.User, error) {
			dirCalled = true
			return nil, nil
		},
	}
	metrics := &recordingMetrics{}
	svc := NewService(newRegistryWith("google", p), dir, metrics)

	_, err := svc.HandleCallback(context.Background(), "google", "bad-code")
	if err == nil {
		t.Fatal("expected error for verification failure")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAuthVerificationFailed {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeAuthVerificationFailed)
	}
	// 検証失敗時はユーザー解決に進まない（部分的なセッションを作らない）
	if dirCalled {
		t.Error("FindOrCreate must not be called after verification failure")
	}
	if len(metrics.failures) != 1 {
		t.Errorf("failures = %v, want one entry", metrics.failures)
	}
}

func TestHandleCallback_DirectoryFailure_SurfacesError(t *testing.T) {
	p := &mockProvider{
		exchangeFn: func(ctx context.Context, code string) (*Identity, error) {
			return &Identity{Email: "a@b.com", Name: "A"}, nil
		},
	}
	dir := &mockDirectory{
		findOrCreateFn: func(ctx context.Context, email, name string) (*model.User, error) {
			return nil, errors.New("store unreachable")
		},
	}
	svc := NewService(newRegistryWith("google", p), dir, nil)

	_, err := svc.HandleCallback(context.Background(), "google", "code")
	if err == nil {
		t.Fatal("expected error for directory failure")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserLookupFailed {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeUserLookupFailed)
	}
}

func TestHandleCallback_UnknownProvider_ReturnsError(t *testing.T) {
	svc := NewService(NewRegistry(), &mockDirectory{}, nil)

	_, err := svc.HandleCallback(context.Background(), "ghost", "code")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestProviders_ReturnsSortedNames(t *testing.T) {
	r := NewRegistry()
	r.Register("google", &mockProvider{})
	r.Register("github", &mockProvider{})
	svc := NewService(r, &mockDirectory{}, nil)

	names := svc.Providers()
	if len(names) != 2 || names[0] != "github" || names[1] != "google" {
		t.Errorf("Providers() = %v, want [github google]", names)
	}
}
