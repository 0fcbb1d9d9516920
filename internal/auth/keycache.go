package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// maxKeySetSize は公開鍵セットのレスポンスとして受け付ける最大サイズ。
const maxKeySetSize = 1 << 20

// keySet は1回の取得で得た鍵と、その有効期限。
type keySet struct {
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

// KeyCache はkid→RSA公開鍵のプロセス内キャッシュ。
// 鍵セットは取得のたびに丸ごと差し替え、読み取りはロックを取らない。
// 同時にミスした場合に重複取得が起こり得るが、結果は同一なので許容する。
type KeyCache struct {
	url     string
	client  *http.Client
	timeout time.Duration
	now     func() time.Time
	onFetch func(err error, d time.Duration)

	current atomic.Pointer[keySet]
}

// KeyCacheOption はKeyCacheの設定を変更する。
type KeyCacheOption func(*KeyCache)

// WithHTTPClient は鍵セット取得に使うHTTPクライアントを指定する。
func WithHTTPClient(client *http.Client) KeyCacheOption {
	return func(c *KeyCache) { c.client = client }
}

// WithFetchTimeout は鍵セット取得のタイムアウトを指定する。
func WithFetchTimeout(d time.Duration) KeyCacheOption {
	return func(c *KeyCache) { c.timeout = d }
}

// WithKeyCacheClock はキャッシュ期限の判定に使う時計を差し替える。
func WithKeyCacheClock(now func() time.Time) KeyCacheOption {
	return func(c *KeyCache) { c.now = now }
}

// WithFetchObserver は鍵セット取得のたびに呼ばれるフックを指定する。
func WithFetchObserver(fn func(err error, d time.Duration)) KeyCacheOption {
	return func(c *KeyCache) { c.onFetch = fn }
}

// NewKeyCache はKeyCacheを生成する。urlが空の場合はDefaultPublicKeysURLを使う。
func NewKeyCache(url string, opts ...KeyCacheOption) *KeyCache {
	if url == "" {
		url = DefaultPublicKeysURL
	}
	c := &KeyCache{
		url:     url,
		timeout: DefaultKeyFetchTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Key はkidに対応する公開鍵を返す。
// キャッシュに無い、またはキャッシュ期限切れの場合は鍵セットを1回だけ取り直す。
// 取り直しても見つからない場合はErrUnknownSigningKeyを返す。
func (c *KeyCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if set := c.current.Load(); set != nil && c.now().Before(set.expiresAt) {
		if key, ok := set.keys[kid]; ok {
			return key, nil
		}
	}

	set, err := c.refresh(ctx)
	if err != nil {
		return nil, err
	}
	key, ok := set.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", ErrUnknownSigningKey, kid)
	}
	return key, nil
}

// refresh は鍵セット全体を取得してキャッシュを差し替える。
// 失敗時は古いキャッシュを残すが、期限切れのものは以後も使われない。
func (c *KeyCache) refresh(ctx context.Context) (set *keySet, err error) {
	start := time.Now()
	defer func() {
		if c.onFetch != nil {
			c.onFetch(err, time.Since(start))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build key request: %v", ErrUpstream, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch public keys: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: public keys endpoint returned status %d", ErrUpstream, resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxKeySetSize)).Decode(&certs); err != nil {
		return nil, fmt.Errorf("%w: decode public keys: %v", ErrUpstream, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("%w: parse certificate %q: %v", ErrUpstream, kid, err)
		}
		keys[kid] = key
	}

	set = &keySet{
		keys:      keys,
		expiresAt: c.now().Add(maxAgeFromCacheControl(resp.Header.Get("Cache-Control"))),
	}
	c.current.Store(set)
	return set, nil
}

// maxAgeFromCacheControl はCache-Controlヘッダーのmax-ageを取り出す。
// 無い・解釈できない・0以下の場合はDefaultKeyCacheTTLを返す。
func maxAgeFromCacheControl(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(strings.TrimSpace(name), "max-age") {
			continue
		}
		secs, err := strconv.Atoi(strings.Trim(strings.TrimSpace(value), `"`))
		if err != nil || secs <= 0 {
			return DefaultKeyCacheTTL
		}
		return time.Duration(secs) * time.Second
	}
	return DefaultKeyCacheTTL
}
