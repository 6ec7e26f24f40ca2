package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/learnhub/user-service/internal/core/domain"
	"github.com/learnhub/user-service/internal/core/service"
	"github.com/learnhub/user-service/internal/infrastructure/auth"
	"github.com/learnhub/user-service/internal/infrastructure/queue"
)

// memAccounts is a goroutine-safe in-memory account store with the same
// uniqueness rules as the MongoDB indexes.
type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	seq      int
}

func (m *memAccounts) conflict(exceptID string, a *domain.Account) bool {
	for id, other := range m.accounts {
		if id != exceptID && (other.Email == a.Email || other.Username == a.Username) {
			return true
		}
	}
	return false
}

func (m *memAccounts) Create(_ context.Context, a *domain.Account) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflict("", a) {
		return nil, domain.ErrConflict
	}
	m.seq++
	stored := *a
	stored.ID = fmt.Sprintf("%024x", m.seq)
	m.accounts[stored.ID] = stored
	return &stored, nil
}

func (m *memAccounts) FindByID(_ context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAccounts) FindByEmailOrUsername(_ context.Context, email, username string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email || a.Username == username {
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAccounts) Update(_ context.Context, a *domain.Account) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.ID]; !ok {
		return nil, domain.ErrNotFound
	}
	if m.conflict(a.ID, a) {
		return nil, domain.ErrConflict
	}
	m.accounts[a.ID] = *a
	updated := *a
	return &updated, nil
}

// newTestServer wires the real hasher, dispatcher, issuer and service
// behind the router, with only the store replaced.
func newTestServer(t *testing.T) (*echo.Echo, *memAccounts) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := zerolog.Nop()
	hasher := queue.NewHashDispatcher(2, auth.NewBcryptHasher(bcrypt.MinCost), log)
	hasher.Start(ctx)

	issuer, err := auth.NewJWTIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}

	store := &memAccounts{accounts: make(map[string]domain.Account)}
	accounts := service.NewAccountService(store, hasher, issuer, nil, log)

	reg := prometheus.NewRegistry()
	e := NewRouter(Dependencies{
		Accounts:   accounts,
		Tokens:     issuer,
		Log:        log,
		Registerer: reg,
		Gatherer:   reg,
	})
	return e, store
}

func do(t *testing.T, e *echo.Echo, method, path, body, token string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: invalid json %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, resp
}

func login(t *testing.T, e *echo.Echo, email, password string) (int, map[string]any) {
	t.Helper()
	return do(t, e, http.MethodPost, "/api/users/login",
		fmt.Sprintf(`{"email":%q,"password":%q}`, email, password), "")
}

func TestRouter_AccountLifecycle(t *testing.T) {
	e, store := newTestServer(t)

	code, body := do(t, e, http.MethodPost, "/api/users/register",
		`{"username":"testuser","email":"testuser@example.com","password":"password123","role":"learner"}`, "")
	if code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%v)", code, body)
	}
	id, _ := body["_id"].(string)
	if id == "" {
		t.Fatalf("register: missing _id in %v", body)
	}
	if _, leaked := body["password"]; leaked {
		t.Fatalf("register: password leaked")
	}
	if body["role"] != "learner" || body["createdAt"] == nil || body["updatedAt"] == nil {
		t.Fatalf("register: unexpected body %v", body)
	}
	if store.accounts[id].PasswordHash == "password123" {
		t.Fatalf("register: plaintext password stored")
	}

	code, body = login(t, e, "testuser@example.com", "password123")
	if code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%v)", code, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login: missing token")
	}
	user, _ := body["user"].(map[string]any)
	if user["_id"] != id {
		t.Fatalf("login: unexpected user %v", body["user"])
	}

	code, body = do(t, e, http.MethodGet, "/api/users/profile", "", token)
	if code != http.StatusOK || body["email"] != "testuser@example.com" {
		t.Fatalf("profile: got %d %v", code, body)
	}
	if _, leaked := body["password"]; leaked {
		t.Fatalf("profile: password leaked")
	}

	code, body = do(t, e, http.MethodPut, "/api/users/profile", `{"password":"newpassword123"}`, token)
	if code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (%v)", code, body)
	}

	if code, body = login(t, e, "testuser@example.com", "password123"); code != http.StatusUnauthorized {
		t.Fatalf("old password: expected 401, got %d", code)
	}
	if body["message"] != domain.MsgInvalidCredentials {
		t.Fatalf("old password: unexpected message %v", body)
	}

	if code, _ = login(t, e, "testuser@example.com", "newpassword123"); code != http.StatusOK {
		t.Fatalf("new password: expected 200, got %d", code)
	}
}

func TestRouter_ProfileRequiresToken(t *testing.T) {
	e, _ := newTestServer(t)

	for _, token := range []string{"", "not-a-jwt"} {
		code, body := do(t, e, http.MethodGet, "/api/users/profile", "", token)
		if code != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", token, code)
		}
		if body["message"] != domain.MsgNotAuthorized {
			t.Fatalf("token %q: unexpected body %v", token, body)
		}
	}

	code, _ := do(t, e, http.MethodPut, "/api/users/profile", `{"username":"someone"}`, "")
	if code != http.StatusUnauthorized {
		t.Fatalf("update without token: expected 401, got %d", code)
	}
}

func TestRouter_DuplicateRegistration(t *testing.T) {
	e, store := newTestServer(t)

	first := `{"username":"testuser","email":"testuser@example.com","password":"password123"}`
	if code, body := do(t, e, http.MethodPost, "/api/users/register", first, ""); code != http.StatusCreated {
		t.Fatalf("first register: %d %v", code, body)
	}

	dup := `{"username":"anotheruser","email":"testuser@example.com","password":"password123"}`
	code, body := do(t, e, http.MethodPost, "/api/users/register", dup, "")
	if code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", code)
	}
	if body["message"] != "Email or username already in use" {
		t.Fatalf("duplicate: unexpected body %v", body)
	}
	if len(store.accounts) != 1 {
		t.Fatalf("expected one stored account, got %d", len(store.accounts))
	}
}

func TestRouter_LoginFailuresAreIndistinguishable(t *testing.T) {
	e, _ := newTestServer(t)

	do(t, e, http.MethodPost, "/api/users/register",
		`{"username":"testuser","email":"testuser@example.com","password":"password123"}`, "")

	wrongCode, wrongBody := login(t, e, "testuser@example.com", "wrongpass")
	unknownCode, unknownBody := login(t, e, "nobody@example.com", "password123")

	if wrongCode != http.StatusUnauthorized || unknownCode != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongCode, unknownCode)
	}
	if wrongBody["message"] != unknownBody["message"] {
		t.Fatalf("messages differ: %v vs %v", wrongBody, unknownBody)
	}
}

func TestRouter_InvalidRegistration(t *testing.T) {
	e, store := newTestServer(t)

	bodies := []string{
		`{"username":"ab","email":"testuser@example.com","password":"password123"}`,
		`{"username":"testuser","email":"bad","password":"password123"}`,
		`{"username":"testuser","email":"testuser@example.com","password":"123"}`,
		`{"username":"testuser","email":"testuser@example.com","password":"password123","role":"superuser"}`,
		`{"username":`,
	}
	for _, b := range bodies {
		code, body := do(t, e, http.MethodPost, "/api/users/register", b, "")
		if code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", b, code)
		}
		if msg, _ := body["message"].(string); msg == "" {
			t.Fatalf("body %s: missing message", b)
		}
	}
	if len(store.accounts) != 0 {
		t.Fatalf("invalid registrations must not write")
	}
}

func TestRouter_UpdateConflict(t *testing.T) {
	e, _ := newTestServer(t)

	do(t, e, http.MethodPost, "/api/users/register",
		`{"username":"alice","email":"alice@example.com","password":"password123"}`, "")
	do(t, e, http.MethodPost, "/api/users/register",
		`{"username":"bobby","email":"bob@example.com","password":"password123"}`, "")

	_, body := login(t, e, "bob@example.com", "password123")
	token, _ := body["token"].(string)

	code, body := do(t, e, http.MethodPut, "/api/users/profile", `{"username":"alice"}`, token)
	if code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%v)", code, body)
	}

	code, body = do(t, e, http.MethodGet, "/api/users/profile", "", token)
	if code != http.StatusOK || body["username"] != "bobby" {
		t.Fatalf("profile changed after failed update: %d %v", code, body)
	}
}

func TestRouter_ProfileOfDeletedAccount(t *testing.T) {
	e, store := newTestServer(t)

	_, body := do(t, e, http.MethodPost, "/api/users/register",
		`{"username":"testuser","email":"testuser@example.com","password":"password123"}`, "")
	id, _ := body["_id"].(string)
	_, body = login(t, e, "testuser@example.com", "password123")
	token, _ := body["token"].(string)

	store.mu.Lock()
	delete(store.accounts, id)
	store.mu.Unlock()

	code, body := do(t, e, http.MethodGet, "/api/users/profile", "", token)
	if code != http.StatusNotFound || body["message"] != domain.MsgNotFound {
		t.Fatalf("expected 404 %q, got %d %v", domain.MsgNotFound, code, body)
	}
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	e, _ := newTestServer(t)

	if code, body := do(t, e, http.MethodGet, "/health", "", ""); code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("liveness: %d %v", code, body)
	}

	// No MongoDB handle is wired in tests.
	if code, _ := do(t, e, http.MethodGet, "/health/ready", "", ""); code != http.StatusServiceUnavailable {
		t.Fatalf("readiness: expected 503, got %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}

	if code, body := do(t, e, http.MethodGet, "/api/unknown", "", ""); code != http.StatusNotFound || body["message"] == nil {
		t.Fatalf("unknown route: %d %v", code, body)
	}
}

func TestRouter_PasswordLongerThanBcryptLimit(t *testing.T) {
	e, store := newTestServer(t)

	for _, pw := range []string{strings.Repeat("a", 73), strings.Repeat("é", 40)} {
		body := fmt.Sprintf(`{"username":"longpass","email":"longpass@example.com","password":%q}`, pw)
		code, resp := do(t, e, http.MethodPost, "/api/users/register", body, "")
		if code != http.StatusBadRequest {
			t.Fatalf("register with %d-byte password: expected 400, got %d (%v)", len(pw), code, resp)
		}
	}
	if len(store.accounts) != 0 {
		t.Fatalf("rejected registrations must not write")
	}

	longest := strings.Repeat("a", 72)
	code, resp := do(t, e, http.MethodPost, "/api/users/register",
		fmt.Sprintf(`{"username":"longpass","email":"longpass@example.com","password":%q}`, longest), "")
	if code != http.StatusCreated {
		t.Fatalf("register with 72-byte password: expected 201, got %d (%v)", code, resp)
	}
	_, resp = login(t, e, "longpass@example.com", longest)
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatalf("login with 72-byte password failed: %v", resp)
	}

	code, resp = do(t, e, http.MethodPut, "/api/users/profile",
		fmt.Sprintf(`{"password":%q}`, strings.Repeat("b", 73)), token)
	if code != http.StatusBadRequest {
		t.Fatalf("update to 73-byte password: expected 400, got %d (%v)", code, resp)
	}
	if code, _ = login(t, e, "longpass@example.com", longest); code != http.StatusOK {
		t.Fatalf("password changed by rejected update: %d", code)
	}
}
