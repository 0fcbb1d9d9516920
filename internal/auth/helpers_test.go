package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testProjectID = "protext-test"

// testSigner はテスト用のRSA鍵と、それを配布する自己署名証明書のペア。
type testSigner struct {
	kid  string
	key  *rsa.PrivateKey
	cert string
}

func newTestSigner(t *testing.T, kid string) *testSigner {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken.system.gserviceaccount.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	return &testSigner{kid: kid, key: key, cert: string(certPEM)}
}

// sign は指定クレームでRS256のトークンを発行する。
func (s *testSigner) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	signed, err := token.SignedString(s.key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

// sessionClaims は有効なセッションCookie用のクレームを返す。
func sessionClaims(subject string, now time.Time, ttl time.Duration) jwt.MapClaims {
	return jwt.MapClaims{
		"iss": SessionIssuer(testProjectID),
		"aud": testProjectID,
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
}

// keyServer は公開鍵エンドポイントを模したテストサーバー。
type keyServer struct {
	*httptest.Server

	mu           sync.Mutex
	certs        map[string]string
	cacheControl string
	status       int
	body         string // 空でなければcertsの代わりにそのまま返す

	hits atomic.Int32
}

func newKeyServer(t *testing.T, signers ...*testSigner) *keyServer {
	t.Helper()
	ks := &keyServer{
		certs:        make(map[string]string),
		cacheControl: "public, max-age=3600, must-revalidate, no-transform",
		status:       http.StatusOK,
	}
	for _, s := range signers {
		ks.certs[s.kid] = s.cert
	}
	ks.Server = httptest.NewServer(http.HandlerFunc(ks.serve))
	t.Cleanup(ks.Close)
	return ks
}

func (ks *keyServer) serve(w http.ResponseWriter, _ *http.Request) {
	ks.hits.Add(1)

	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.cacheControl != "" {
		w.Header().Set("Cache-Control", ks.cacheControl)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ks.status)
	if ks.body != "" {
		_, _ = w.Write([]byte(ks.body))
		return
	}
	_ = json.NewEncoder(w).Encode(ks.certs)
}

func (ks *keyServer) addSigner(s *testSigner) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.certs[s.kid] = s.cert
}

// set はサーバーの応答内容をロックを取って変更する。
func (ks *keyServer) set(fn func(ks *keyServer)) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	fn(ks)
}

func (ks *keyServer) fail(status int) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.status = status
}

// fakeClock はテストから進められる時計。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
