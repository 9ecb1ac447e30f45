package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultKeyCacheTTL = time.Hour
	minKeyRefresh      = time.Minute
	maxCertsBodySize   = 1 << 20
)

// KeySource はトークンヘッダーのkidに対応する署名検証用の公開鍵を返す。
type KeySource interface {
	PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// CertKeySource はkid→PEM証明書のJSONを配布するエンドポイントから公開鍵を取得する。
// 取得結果はCache-Controlのmax-ageの間キャッシュする。
type CertKeySource struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
	fetchedAt time.Time
}

var _ KeySource = (*CertKeySource)(nil)

// NewCertKeySource はCertKeySourceを生成する。
func NewCertKeySource(url string, client *http.Client) *CertKeySource {
	if client == nil {
		client = http.DefaultClient
	}
	return &CertKeySource{
		url:    url,
		client: client,
		now:    time.Now,
	}
}

// PublicKey はkidに対応する公開鍵を返す。
// キャッシュ期限切れ、または未知のkidの場合は再取得する（未知のkidによる再取得は1分に1回まで）。
// 証明書エンドポイントから取得できなかった場合はErrKeysUnavailableをラップしたエラーを返す。
func (s *CertKeySource) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if key, ok := s.keys[kid]; ok && now.Before(s.expiresAt) {
		return key, nil
	}

	stale := s.keys == nil || !now.Before(s.expiresAt)
	if stale || now.Sub(s.fetchedAt) >= minKeyRefresh {
		if err := s.refresh(ctx, now); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
		}
	}

	key, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id: %q", kid)
	}
	return key, nil
}

func (s *CertKeySource) refresh(ctx context.Context, now time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build certs request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch certs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("certs endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCertsBodySize))
	if err != nil {
		return fmt.Errorf("failed to read certs: %w", err)
	}

	keys, err := parseCerts(body)
	if err != nil {
		return err
	}

	s.keys = keys
	s.fetchedAt = now
	s.expiresAt = now.Add(maxAge(resp.Header.Get("Cache-Control"), defaultKeyCacheTTL))
	return nil
}

// parseCerts はkid→PEM証明書のJSONからRSA公開鍵を取り出す。
func parseCerts(body []byte) (map[string]*rsa.PublicKey, error) {
	var certs map[string]string
	if err := json.Unmarshal(body, &certs); err != nil {
		return nil, fmt.Errorf("failed to decode certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, certPEM := range certs {
		block, _ := pem.Decode([]byte(certPEM))
		if block == nil {
			return nil, fmt.Errorf("invalid PEM for key id %q", kid)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate %q: %w", kid, err)
		}
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("certificate %q does not hold an RSA key", kid)
		}
		keys[kid] = pub
	}
	if len(keys) == 0 {
		return nil, errors.New("certs endpoint returned no keys")
	}
	return keys, nil
}

// maxAge はCache-Controlヘッダーのmax-ageを返す。指定がなければfallbackを返す。
func maxAge(cacheControl string, fallback time.Duration) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(strings.Trim(value, `"`))
		if err != nil || secs <= 0 {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}
	return fallback
}
