package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/stockwarden/internal/alert"
	"github.com/prn-tf/stockwarden/internal/auth"
	cachememory "github.com/prn-tf/stockwarden/internal/cache/memory"
	"github.com/prn-tf/stockwarden/internal/catalog"
	"github.com/prn-tf/stockwarden/internal/config"
	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/lock"
	"github.com/prn-tf/stockwarden/internal/metrics"
	"github.com/prn-tf/stockwarden/internal/notify"
	"github.com/prn-tf/stockwarden/internal/repository/memory"
	"github.com/prn-tf/stockwarden/internal/service"
	"github.com/prn-tf/stockwarden/internal/storage"
)

type outbox struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (o *outbox) Send(ctx context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

// last returns the most recent message sent to addr.
func (o *outbox) last(t *testing.T, addr string) notify.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].To == addr {
			return o.sent[i]
		}
	}
	t.Fatalf("no message sent to %s", addr)
	return notify.Message{}
}

type apiFixture struct {
	server    *httptest.Server
	tokens    *auth.TokenIssuer
	users     *service.UserService
	inventory *service.InventoryService
	box       *outbox
}

type fixtureOption func(*RouterConfig)

func newAPIFixture(t *testing.T, opts ...fixtureOption) *apiFixture {
	t.Helper()
	logger := zerolog.Nop()

	cache := cachememory.NewCache()
	t.Cleanup(cache.Stop)

	box := &outbox{}
	userRepo := memory.NewUserRepository()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	m := metrics.New()

	otp := auth.NewOTPService(cache, 5*time.Minute, 5, logger)
	authn := auth.NewAuthenticator(userRepo, hasher, otp, box, 24*time.Hour, m, logger)
	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "stockwarden-test",
		PendingTTL: 10 * time.Minute,
		SessionTTL: time.Hour,
	}, cache)

	engine, err := alert.NewEngine(alert.Policy{Threshold: 20}, cache, box, m, logger)
	require.NoError(t, err)

	store := catalog.NewStore()
	require.NoError(t, store.Replace(service.SeedProducts(time.Now())))

	root := t.TempDir()
	archive, err := storage.NewFilesystemArchive(filepath.Join(root, "archive"), "", logger)
	require.NoError(t, err)

	inventory := service.NewInventoryService(store, engine, m, logger)
	reports := service.NewReportService(store, archive, box, lock.NewMemoryLocker(), logger, service.ReportConfig{
		WorkDir:          filepath.Join(root, "work"),
		DefaultRecipient: alert.DefaultRecipient,
	})
	users := service.NewUserService(userRepo, hasher, logger)

	cfg := RouterConfig{
		AuthHandler:    NewAuthHandler(authn, tokens, logger),
		ProductHandler: NewProductHandler(inventory, logger),
		ReportHandler:  NewReportHandler(inventory, reports, logger),
		UserHandler:    NewUserHandler(users, logger),
		Authenticator:  authn,
		Tokens:         tokens,
		Metrics:        m.Handler(),
		Logger:         logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	server := httptest.NewServer(NewRouter(cfg).Handler())
	t.Cleanup(server.Close)

	return &apiFixture{server: server, tokens: tokens, users: users, inventory: inventory, box: box}
}

func (f *apiFixture) createUser(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	out, err := f.users.Create(context.Background(), service.CreateUserInput{
		FullName: "Test " + role.String(),
		Email:    email,
		Password: "correct-horse",
		Role:     role,
	})
	require.NoError(t, err)
	return out.User
}

func (f *apiFixture) token(t *testing.T, user *domain.User) string {
	t.Helper()
	raw, _, err := f.tokens.Issue(user, auth.StageFull)
	require.NoError(t, err)
	return raw
}

// do sends body as JSON and decodes a JSON response into out when non-nil.
func (f *apiFixture) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var otpPattern = regexp.MustCompile(`\b(\d{6})\b`)

func TestAPI_LoginOTPLogout(t *testing.T) {
	f := newAPIFixture(t)
	f.createUser(t, "manager@corp.com", domain.RoleManager)

	var bad errorBody
	status := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "manager@corp.com", "password": "wrong"}, &bad)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "InvalidCredentials", bad.Error.Code)

	var pending tokenResponse
	status = f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "MANAGER@corp.com", "password": "correct-horse"}, &pending)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, auth.StagePending, pending.Stage)

	// A pending token does not open the catalog.
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/products", pending.Token, nil, nil))

	match := otpPattern.FindStringSubmatch(f.box.last(t, "manager@corp.com").Body)
	require.Len(t, match, 2)
	code := match[1]

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	status = f.do(t, http.MethodPost, "/api/v1/auth/otp", pending.Token, map[string]string{"code": wrong}, &bad)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "InvalidOtp", bad.Error.Code)

	var full tokenResponse
	status = f.do(t, http.MethodPost, "/api/v1/auth/otp", pending.Token, map[string]string{"code": code}, &full)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, auth.StageFull, full.Stage)
	require.NotNil(t, full.User)
	assert.Equal(t, domain.RoleManager, full.User.Role)

	// The pending token was consumed with the code.
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/v1/auth/otp", pending.Token, map[string]string{"code": code}, nil))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/products", full.Token, nil, nil))
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/v1/auth/logout", full.Token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/products", full.Token, nil, nil))
}

func TestAPI_RegisterVerifyLogin(t *testing.T) {
	f := newAPIFixture(t)
	email := "new.user@corp.com"

	var reg verificationResponse
	status := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"full_name": "New User", "email": email, "password": "long-enough-pw",
	}, &reg)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, domain.RoleViewer, reg.User.Role)
	assert.False(t, reg.User.Verified)
	assert.Empty(t, reg.DeliveryError)

	var dup errorBody
	status = f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"full_name": "Again", "email": "NEW.USER@corp.com", "password": "long-enough-pw",
	}, &dup)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DuplicateEmail", dup.Error.Code)

	var unverified errorBody
	status = f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "long-enough-pw"}, &unverified)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "EmailUnverified", unverified.Error.Code)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/auth/resend-verification", "", map[string]string{"email": email}, nil))

	token := regexp.MustCompile(`token is: (\S+)`).FindStringSubmatch(f.box.last(t, email).Body)
	require.Len(t, token, 2)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", map[string]string{"email": email, "token": "bogus"}, nil))
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", map[string]string{"email": email, "token": token[1]}, nil))

	var pending tokenResponse
	status = f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "long-enough-pw"}, &pending)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, pending.Token)
}

func TestAPI_ProductRoleGates(t *testing.T) {
	f := newAPIFixture(t)
	viewer := f.token(t, f.createUser(t, "viewer@corp.com", domain.RoleViewer))
	manager := f.token(t, f.createUser(t, "manager@corp.com", domain.RoleManager))

	newProduct := map[string]any{"id": "9", "name": "Monitor", "category": "Electronics", "price": 150.0, "quantity": 40, "supplier": "ViewTech Inc.", "date": "2026-03-14"}

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/products", "", nil, nil))
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/products/1", viewer, nil, nil))
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/v1/products", viewer, newProduct, nil))
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, "/api/v1/products/1", viewer, nil, nil))

	var created stockResponse
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/products", manager, newProduct, &created))
	assert.Equal(t, "9", created.Product.ID)
	assert.Equal(t, "not_due", created.Alert)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), created.Product.UpdatedAt)
}

func TestAPI_ProductErrors(t *testing.T) {
	f := newAPIFixture(t)
	manager := f.token(t, f.createUser(t, "manager@corp.com", domain.RoleManager))

	var e errorBody
	status := f.do(t, http.MethodPost, "/api/v1/products", manager, map[string]any{"id": "1", "name": "Dup"}, &e)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DuplicateKey", e.Error.Code)

	status = f.do(t, http.MethodPost, "/api/v1/products", manager, map[string]any{"id": "x", "name": "Neg", "price": -1}, &e)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "InvalidArgument", e.Error.Code)

	status = f.do(t, http.MethodPost, "/api/v1/products", manager, map[string]any{"id": "x", "name": "Bad", "date": "14/03/2026"}, &e)
	assert.Equal(t, http.StatusBadRequest, status)

	status = f.do(t, http.MethodPost, "/api/v1/products", manager, map[string]any{"id": "x", "name": "X", "colour": "red"}, &e)
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/products/missing", manager, nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPut, "/api/v1/products/missing", manager, map[string]any{"quantity": 3}, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/v1/products/1", manager, map[string]any{}, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/products?sort=colour", manager, nil, nil))
}

func TestAPI_UpdateFiresAlertOnce(t *testing.T) {
	f := newAPIFixture(t)
	manager := f.token(t, f.createUser(t, "manager@corp.com", domain.RoleManager))

	var out stockResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/v1/products/1", manager, map[string]any{"quantity": 19}, &out))
	assert.Equal(t, 19, out.Product.Quantity)
	assert.Equal(t, 120000.0, out.Product.Price)
	assert.Equal(t, "fired", out.Alert)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/v1/products/1", manager, map[string]any{"quantity": 15}, &out))
	assert.Equal(t, "suppressed", out.Alert)

	msg := f.box.last(t, alert.DefaultRecipient)
	assert.Contains(t, msg.Subject, "Laptop")
	assert.Contains(t, msg.Body, "19 units")

	var low productListResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/products/low-stock", manager, nil, &low))
	assert.Equal(t, 1, low.Count)
}

func TestAPI_ListSearchAndDelete(t *testing.T) {
	f := newAPIFixture(t)
	manager := f.token(t, f.createUser(t, "manager@corp.com", domain.RoleManager))

	var list productListResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/products?sort=price", manager, nil, &list))
	require.Equal(t, 3, list.Count)
	assert.Equal(t, "Keyboard", list.Products[0].Name)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/products/search?q=vasanthan", manager, nil, &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Chair", list.Products[0].Name)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/products/search?q=", manager, nil, &list))
	assert.Zero(t, list.Count)
	assert.NotNil(t, list.Products)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/products/3", manager, nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/v1/products/3", manager, nil, nil))
}

func TestAPI_Reports(t *testing.T) {
	f := newAPIFixture(t)
	viewer := f.token(t, f.createUser(t, "viewer@corp.com", domain.RoleViewer))
	manager := f.token(t, f.createUser(t, "manager@corp.com", domain.RoleManager))

	var sum struct {
		TotalCount    int     `json:"total_count"`
		TotalQuantity int     `json:"total_quantity"`
		TotalValue    float64 `json:"total_value"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/reports/summary", viewer, nil, &sum))
	assert.Equal(t, 3, sum.TotalCount)
	assert.Equal(t, 146, sum.TotalQuantity)
	assert.InDelta(t, 120000*45+4000*45+4500*56, sum.TotalValue, 1e-6)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/v1/reports/send", viewer, nil, nil))

	var sent service.SendReportOutput
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/reports/send", manager, map[string]string{"recipient": "boss@corp.com"}, &sent))
	assert.Equal(t, "boss@corp.com", sent.Recipient)
	assert.Equal(t, 3, sent.Products)
	assert.FileExists(t, sent.Location)
	assert.NotEmpty(t, f.box.last(t, "boss@corp.com").AttachmentPath)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/reports/send", manager, nil, &sent))
	assert.Equal(t, alert.DefaultRecipient, sent.Recipient)
}

func TestAPI_UserAdmin(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.createUser(t, "admin@corp.com", domain.RoleAdmin)
	adminToken := f.token(t, admin)
	manager := f.token(t, f.createUser(t, "manager@corp.com", domain.RoleManager))

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/v1/users", manager, nil, nil))

	var created domain.User
	status := f.do(t, http.MethodPost, "/api/v1/users", adminToken, map[string]string{
		"full_name": "Clerk", "email": "clerk@corp.com", "password": "clerk-password", "role": "viewer",
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, domain.RoleViewer, created.Role)
	assert.True(t, created.Verified)

	var promoted domain.User
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/v1/users/"+created.ID+"/role", adminToken, map[string]string{"role": "MANAGER"}, &promoted))
	assert.Equal(t, domain.RoleManager, promoted.Role)

	var e errorBody
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/v1/users/"+created.ID+"/role", adminToken, map[string]string{"role": "OWNER"}, &e))
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, "/api/v1/users/"+admin.ID, adminToken, nil, nil))

	var list service.ListUsersOutput
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/users?limit=2", adminToken, nil, &list))
	assert.EqualValues(t, 3, list.TotalCount)
	assert.Len(t, list.Users, 2)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/users/"+created.ID, adminToken, nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/users/"+created.ID, adminToken, nil, nil))
}

func TestAPI_AuthRateLimit(t *testing.T) {
	f := newAPIFixture(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, BurstSize: 2})
	})
	body := map[string]string{"email": "nobody@corp.com", "password": "x"}

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/v1/auth/login", "", body, nil))
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/v1/auth/login", "", body, nil))
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/api/v1/auth/login", "", body, nil))

	// Catalog routes are not limited.
	viewer := f.token(t, f.createUser(t, "viewer@corp.com", domain.RoleViewer))
	for range 3 {
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/products", viewer, nil, nil))
	}
}

func (f *apiFixture) loginFrom(t *testing.T, header, value string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/v1/auth/login",
		strings.NewReader(`{"email":"nobody@corp.com","password":"x"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(header, value)

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestAPI_AuthRateLimitIgnoresForwardedHeaders(t *testing.T) {
	f := newAPIFixture(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, BurstSize: 1})
	})

	assert.Equal(t, http.StatusUnauthorized, f.loginFrom(t, "X-Forwarded-For", "203.0.113.1"))
	for i := 2; i <= 6; i++ {
		addr := fmt.Sprintf("203.0.113.%d", i)
		assert.Equal(t, http.StatusTooManyRequests, f.loginFrom(t, "X-Forwarded-For", addr), addr)
		assert.Equal(t, http.StatusTooManyRequests, f.loginFrom(t, "X-Real-IP", addr), addr)
		assert.Equal(t, http.StatusTooManyRequests, f.loginFrom(t, "True-Client-IP", addr), addr)
	}
}

func TestAPI_AuthRateLimitTrustedProxy(t *testing.T) {
	f := newAPIFixture(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, BurstSize: 1})
		cfg.TrustProxyHeaders = true
	})

	assert.Equal(t, http.StatusUnauthorized, f.loginFrom(t, "X-Real-IP", "198.51.100.1"))
	assert.Equal(t, http.StatusUnauthorized, f.loginFrom(t, "X-Real-IP", "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, f.loginFrom(t, "X-Real-IP", "198.51.100.1"))
}

func TestAPI_RequestBodyLimit(t *testing.T) {
	f := newAPIFixture(t, func(cfg *RouterConfig) {
		cfg.MaxBodySize = 64
	})

	var tooLarge errorBody
	status := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"full_name": "Big Body",
		"email":     "big@corp.com",
		"password":  strings.Repeat("x", 128),
	}, &tooLarge)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, tooLarge.Error.Message, "exceeds 64 bytes")

	var small errorBody
	status = f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": "a@b.co"}, &small)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotContains(t, small.Error.Message, "exceeds")
}

type stubDatabase struct{ err error }

func (s stubDatabase) Ping(ctx context.Context) error   { return s.err }
func (s stubDatabase) Health(ctx context.Context) error { return s.err }
func (s stubDatabase) Close() error                     { return nil }

func TestAPI_HealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)

	var health map[string]string
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "", nil, &health))
	assert.Equal(t, "memory", health["database"])

	resp, err := f.server.Client().Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down := newAPIFixture(t, func(cfg *RouterConfig) {
		cfg.Database = stubDatabase{err: errors.New("connection refused")}
	})
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/health", "", nil, nil))

	up := newAPIFixture(t, func(cfg *RouterConfig) {
		cfg.Database = stubDatabase{}
	})
	assert.Equal(t, http.StatusOK, up.do(t, http.MethodGet, "/health", "", nil, nil))
}

func TestRateLimiter_RefillsPerClient(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))

	now = now.Add(2 * idleLimiterTTL)
	assert.True(t, l.Allow("10.0.0.3"))
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.clients, 1)
}
