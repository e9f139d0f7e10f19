package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// tokenSource держит авторизационный токен Portals и обновляет его по
// истечении. Раньше токен жил в глобальной мапе — теперь это явное
// состояние клиента.
type tokenSource struct {
	http   *http.Client
	apiKey string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newTokenSource(hc *http.Client, apiKey string) *tokenSource {
	return &tokenSource{http: hc, apiKey: apiKey}
}

func (t *tokenSource) get(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token != "" && time.Now().Before(t.expiresAt) {
		return t.token, nil
	}
	if t.apiKey == "" {
		return "", errors.New("portals api key not configured")
	}
	body, _ := json.Marshal(map[string]string{"api_key": t.apiKey})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, portalsAPI+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("portals auth: status %d", resp.StatusCode)
	}
	var out struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("portals auth: empty token")
	}
	ttl := time.Duration(out.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	t.token = out.Token
	// обновляемся чуть раньше реального истечения
	t.expiresAt = time.Now().Add(ttl - 30*time.Second)
	return t.token, nil
}

func (t *tokenSource) invalidate() {
	t.mu.Lock()
	t.token = ""
	t.mu.Unlock()
}
