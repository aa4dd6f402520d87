package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/facegate/internal/auth/face"
	"github.com/corvid-labs/facegate/internal/auth/service"
	"github.com/corvid-labs/facegate/internal/auth/session/drivers/memory"
	"github.com/corvid-labs/facegate/internal/auth/store/drivers/sqlite"
	"github.com/corvid-labs/facegate/pkg/cryptox"
	"github.com/corvid-labs/facegate/pkg/jwtx"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "facegate-http-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// stubExtractor maps image bytes to fixed templates the way the external
// embedding service would.
type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, image []byte) (face.Template, error) {
	base := make(face.Template, 128)
	for i := range base {
		base[i] = 0.05
	}
	switch string(image) {
	case "enrolled", "match":
		return base, nil
	case "stranger":
		other := make(face.Template, 128)
		for i := range other {
			other[i] = -0.05
		}
		return other, nil
	default:
		return nil, face.ErrNoFaceDetected
	}
}

type testServer struct {
	srv    *httptest.Server
	store  *sqlite.Store
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, service.SeedRoles(ctx, st))

	signer, err := jwtx.NewEphemeralSigner("test-key")
	require.NoError(t, err)
	verifier := jwtx.NewVerifierEdDSA("test-key", signer.Public(), "facegate-test")

	tracker := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	login := &service.LoginService{
		Store:   st,
		Tracker: tracker,
		Signer:  signer,
		Issuer:  "facegate-test",
	}

	router := NewRouter(verifier, "test", st, tracker, logger)
	router.LoginService = login
	router.RegisterService = &service.RegisterService{Store: st, Issuer: "facegate-test", Extractor: stubExtractor{}}
	router.FaceService = &service.FaceService{Store: st, Tracker: tracker, Extractor: stubExtractor{}}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, store: st, client: srv.Client()}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp, out
}

// registerAndLogin walks a user through the whole flow and returns a live
// access token.
func (ts *testServer) registerAndLogin(t *testing.T, username string) string {
	t.Helper()

	resp, body := ts.do(t, http.MethodPost, "/v1/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct horse battery staple",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	secret := body["totp_secret"].(string)

	resp, body = ts.do(t, http.MethodPost, "/v1/login", "", map[string]string{
		"username": username,
		"password": "correct horse battery staple",
		"method":   "totp",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	attemptToken := body["attempt_token"].(string)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	resp, body = ts.do(t, http.MethodPost, "/v1/login/verify", "", map[string]string{
		"attempt_token": attemptToken,
		"code":          code,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["access_token"].(string)
}

func TestFullLoginFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	token := ts.registerAndLogin(t, "alice")

	resp, body := ts.do(t, http.MethodGet, "/v1/protected", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "alice", body["username"])

	// Logout revokes; the same token stops working.
	resp, _ = ts.do(t, http.MethodPost, "/v1/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/v1/protected", token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t, "bob")

	resp, body := ts.do(t, http.MethodPost, "/v1/login", "", map[string]string{
		"username": "bob",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid_credentials", body["error"])

	// Unknown user gets the identical error.
	resp, body2 := ts.do(t, http.MethodPost, "/v1/login", "", map[string]string{
		"username": "nobody",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, body["error"], body2["error"])
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/v1/register", "", map[string]string{
		"username": "carol",
		"password": "correct horse battery staple",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/v1/login", "", map[string]string{
		"username": "carol",
		"password": "correct horse battery staple",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, "/v1/login/verify", "", map[string]string{
		"attempt_token": body["attempt_token"].(string),
		"code":          "000000",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid_or_expired_code", body["error"])
}

func TestVerifyReplayLooksLikeBadCode(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/v1/register", "", map[string]string{
		"username": "hank",
		"password": "correct horse battery staple",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	secret := body["totp_secret"].(string)

	resp, body = ts.do(t, http.MethodPost, "/v1/login", "", map[string]string{
		"username": "hank",
		"password": "correct horse battery staple",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	attemptToken := body["attempt_token"].(string)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	verify := map[string]string{"attempt_token": attemptToken, "code": code}
	resp, _ = ts.do(t, http.MethodPost, "/v1/login/verify", "", verify)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Replaying the consumed attempt reads exactly like a wrong code.
	resp, body = ts.do(t, http.MethodPost, "/v1/login/verify", "", verify)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid_or_expired_code", body["error"])
}

func TestAdminRequiresRole(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	reg, body := ts.do(t, http.MethodPost, "/v1/register", "", map[string]string{
		"username": "dave",
		"password": "correct horse battery staple",
	})
	require.Equal(t, http.StatusCreated, reg.StatusCode)
	secret := body["totp_secret"].(string)

	login := func() string {
		resp, body := ts.do(t, http.MethodPost, "/v1/login", "", map[string]string{
			"username": "dave",
			"password": "correct horse battery staple",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)
		resp, body = ts.do(t, http.MethodPost, "/v1/login/verify", "", map[string]string{
			"attempt_token": body["attempt_token"].(string),
			"code":          code,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return body["access_token"].(string)
	}

	token := login()
	resp, body := ts.do(t, http.MethodGet, "/v1/admin", token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "forbidden", body["error"])

	user, err := ts.store.Users().GetUserByUsername(ctx, "dave")
	require.NoError(t, err)
	require.NoError(t, service.PromoteToAdmin(ctx, ts.store, user.ID))

	// The existing session keeps its role snapshot.
	resp, _ = ts.do(t, http.MethodGet, "/v1/admin", token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// A fresh login picks up the new role.
	resp, _ = ts.do(t, http.MethodGet, "/v1/admin", login(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestVaultRequiresFaceVerification(t *testing.T) {
	ts := newTestServer(t)

	token := ts.registerAndLogin(t, "erin")
	img := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	resp, body := ts.do(t, http.MethodGet, "/v1/vault", token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "face_verification_required", body["error"])

	// Enroll, then verify with a matching face.
	resp, _ = ts.do(t, http.MethodPost, "/v1/face/enroll", token, map[string]string{"image": img("enrolled")})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/v1/face/verify", token, map[string]string{"image": img("match")})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// One verification unlocks exactly one vault access.
	resp, _ = ts.do(t, http.MethodGet, "/v1/vault", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/v1/vault", token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestFaceVerifyRejectsStranger(t *testing.T) {
	ts := newTestServer(t)

	token := ts.registerAndLogin(t, "frank")
	img := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	resp, _ := ts.do(t, http.MethodPost, "/v1/face/enroll", token, map[string]string{"image": img("enrolled")})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/v1/face/verify", token, map[string]string{"image": img("stranger")})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "face_mismatch", body["error"])

	resp, body = ts.do(t, http.MethodPost, "/v1/face/verify", token, map[string]string{"image": img("blurry")})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "no_face_detected", body["error"])
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])

	resp, body = ts.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/v1/protected", "/v1/vault", "/v1/admin"} {
		resp, body := ts.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		require.Equal(t, "invalid_token", body["error"], path)
	}

	resp, _ := ts.do(t, http.MethodGet, "/v1/protected", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/v1/register", "", map[string]string{
		"username": "grace", "password": "pw12345678",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/v1/register", "", map[string]string{
		"username": "grace", "password": "pw12345678",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "user_already_exists", body["error"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/v1/register", "", map[string]string{
		"username": "heidi", "email": "shared@example.com", "password": "pw12345678",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/v1/register", "", map[string]string{
		"username": "mallory", "email": "shared@example.com", "password": "pw12345678",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "user_already_exists", body["error"])
}

func TestRegisterWithFaceImage(t *testing.T) {
	ts := newTestServer(t)
	img := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	resp, body := ts.do(t, http.MethodPost, "/v1/register", "", map[string]string{
		"username":   "ivy",
		"password":   "correct horse battery staple",
		"face_image": img("enrolled"),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	secret := body["totp_secret"].(string)

	resp, body = ts.do(t, http.MethodPost, "/v1/login", "", map[string]string{
		"username": "ivy",
		"password": "correct horse battery staple",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	resp, body = ts.do(t, http.MethodPost, "/v1/login/verify", "", map[string]string{
		"attempt_token": body["attempt_token"].(string),
		"code":          code,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["access_token"].(string)

	// The template enrolled at registration verifies without a separate
	// enroll call.
	resp, _ = ts.do(t, http.MethodPost, "/v1/face/verify", token, map[string]string{"image": img("match")})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/v1/vault", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMalformedJSONRejected(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/v1/login",
		bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
