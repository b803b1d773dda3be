// Package auth は外部IDプロバイダのベアラートークン検証を提供する。
package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity は検証済みトークンから得たユーザー情報。
type Identity struct {
	UserID string
}

// TokenVerifier はベアラートークンの検証インターフェース。
// ミドルウェアが必要とする最小の能力として定義する。
type TokenVerifier interface {
	// Verify はIDトークンを検証し、ユーザー情報を返す。
	// 無効なトークンの場合はエラーを返す。
	Verify(ctx context.Context, token string) (*Identity, error)
}

// certCacheTTL は公開鍵キャッシュの有効期間。
// IDプロバイダの鍵ローテーションは未知のkidでの再取得でも追従する。
const certCacheTTL = time.Hour

// Verifier は外部IDプロバイダが発行したRS256署名のIDトークンを検証する。
// プロバイダのx509証明書をHTTPで取得し、kidごとの公開鍵としてキャッシュする。
type Verifier struct {
	httpClient *http.Client
	logger     *slog.Logger
	certsURL   string
	projectID  string
	issuer     string

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewVerifier はVerifierを生成する。
// projectIDはトークンのaudienceおよびissuerの検証に使用する。
func NewVerifier(httpClient *http.Client, logger *slog.Logger, certsURL, projectID string) *Verifier {
	return &Verifier{
		httpClient: httpClient,
		logger:     logger,
		certsURL:   certsURL,
		projectID:  projectID,
		issuer:     "https://securetoken.google.com/" + projectID,
		keys:       make(map[string]*rsa.PublicKey),
	}
}

// Verify はIDトークンを検証し、subjectクレームをユーザーIDとして返す。
func (v *Verifier) Verify(ctx context.Context, token string) (*Identity, error) {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, fmt.Errorf("token has no kid header")
			}
			return v.publicKey(ctx, kid)
		},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("token has no subject claim")
	}

	return &Identity{UserID: sub}, nil
}

// publicKey はkidに対応する公開鍵を返す。
// キャッシュが古い、またはkidが未知の場合は証明書を再取得する。
func (v *Verifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Since(v.fetchedAt) < certCacheTTL
	v.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	if err := v.fetchKeys(ctx); err != nil {
		// 再取得に失敗してもキャッシュ済みの鍵があればそれを使う
		if ok {
			return key, nil
		}
		return nil, err
	}

	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no certificate found for kid %q", kid)
	}
	return key, nil
}

// fetchKeys はIDプロバイダの証明書エンドポイントから公開鍵一覧を取得する。
func (v *Verifier) fetchKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build certs request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.logger.Error("failed to fetch identity provider certs",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to fetch certs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("certs endpoint returned status %d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return fmt.Errorf("failed to decode certs response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, certPEM := range certs {
		key, err := parseRSAPublicKey(certPEM)
		if err != nil {
			v.logger.Warn("skipping unparsable certificate",
				slog.String("kid", kid),
				slog.String("error", err.Error()),
			)
			continue
		}
		keys[kid] = key
	}
	if len(keys) == 0 {
		return fmt.Errorf("certs endpoint returned no usable keys")
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()

	return nil
}

// parseRSAPublicKey はPEM形式のx509証明書からRSA公開鍵を取り出す。
func parseRSAPublicKey(certPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	key, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate does not contain an RSA public key")
	}
	return key, nil
}
