package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"Gift-Price-Telegram-bot/internal/logger"
)

// ErrNoMatch — ни один маркетплейс не знает такого подарка или стикера
var ErrNoMatch = errors.New("no matching gift or sticker")

const (
	tonnelAPI  = "https://gifts.tonnel.network/api"
	portalsAPI = "https://portals-market.com/api"

	cacheTTL   = 5 * time.Minute
	catalogTTL = time.Hour
)

// Price — сводка цен по ресурсу с нескольких площадок
type Price struct {
	Name      string
	FloorTON  float64
	AvgTON    float64
	Markets   []string
	FetchedAt time.Time
}

type cacheEntry struct {
	price     Price
	expiresAt time.Time
}

// Client опрашивает маркетплейсы подарков. Кэш цен и токен авторизации
// живут внутри клиента, а не в глобальных переменных.
type Client struct {
	http   *http.Client
	tokens *tokenSource

	mu    sync.RWMutex
	cache map[string]cacheEntry

	catalogMu      sync.Mutex
	catalog        []string
	catalogExpires time.Time
}

func NewClient(portalsAPIKey string) *Client {
	hc := &http.Client{Timeout: 15 * time.Second}
	return &Client{
		http:   hc,
		tokens: newTokenSource(hc, portalsAPIKey),
		cache:  make(map[string]cacheEntry),
	}
}

// FetchPrice возвращает цену ресурса, опрашивая площадки параллельно.
// Берётся минимальный флор из ответивших; ErrNoMatch — только если ни одна
// площадка не нашла ресурс.
func (c *Client) FetchPrice(ctx context.Context, name string) (Price, error) {
	key := NormalizeName(name)
	if key == "" {
		return Price{}, ErrNoMatch
	}
	// Нечёткое сопоставление с каталогом: "durov" -> "durov's cap".
	// Если каталог недоступен, работаем с тем, что прислал пользователь.
	if canonical, ok := c.resolve(ctx, key); ok {
		key = canonical
	}

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		c.mu.RUnlock()
		return entry.price, nil
	}
	c.mu.RUnlock()

	type marketResult struct {
		market string
		floor  float64
		avg    float64
	}
	var (
		resMu   sync.Mutex
		results []marketResult
	)
	collect := func(market string, floor, avg float64) {
		resMu.Lock()
		results = append(results, marketResult{market, floor, avg})
		resMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		floor, avg, err := c.fetchTonnel(gctx, key)
		if errors.Is(err, ErrNoMatch) {
			return nil
		}
		if err != nil {
			logger.Warn("tonnel fetch failed: " + err.Error())
			return nil // одна упавшая площадка не валит запрос
		}
		collect("Tonnel", floor, avg)
		return nil
	})
	g.Go(func() error {
		floor, avg, err := c.fetchPortals(gctx, key)
		if errors.Is(err, ErrNoMatch) {
			return nil
		}
		if err != nil {
			logger.Warn("portals fetch failed: " + err.Error())
			return nil
		}
		collect("Portals", floor, avg)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Price{}, err
	}
	if len(results) == 0 {
		return Price{}, ErrNoMatch
	}

	price := Price{Name: key, FetchedAt: time.Now()}
	var avgSum float64
	for _, r := range results {
		if price.FloorTON == 0 || r.floor < price.FloorTON {
			price.FloorTON = r.floor
		}
		avgSum += r.avg
		price.Markets = append(price.Markets, r.market)
	}
	price.AvgTON = avgSum / float64(len(results))

	c.mu.Lock()
	c.cache[key] = cacheEntry{price: price, expiresAt: time.Now().Add(cacheTTL)}
	c.mu.Unlock()
	return price, nil
}

// resolve сопоставляет запрос со списком известных подарков
func (c *Client) resolve(ctx context.Context, query string) (string, bool) {
	c.catalogMu.Lock()
	if time.Now().After(c.catalogExpires) {
		names, err := c.fetchCatalog(ctx)
		if err != nil {
			logger.Warn("catalog fetch failed: " + err.Error())
		} else {
			c.catalog = names
			c.catalogExpires = time.Now().Add(catalogTTL)
		}
	}
	catalog := c.catalog
	c.catalogMu.Unlock()

	if match, ok := MatchName(query, catalog); ok {
		return NormalizeName(match), true
	}
	return "", false
}

func (c *Client) fetchCatalog(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tonnelAPI+"/gifts/names", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tonnel catalog: status %d", resp.StatusCode)
	}
	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) fetchTonnel(ctx context.Context, name string) (floor, avg float64, err error) {
	u := tonnelAPI + "/gifts/floor?name=" + url.QueryEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return 0, 0, ErrNoMatch
	}
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("tonnel: status %d", resp.StatusCode)
	}
	var body struct {
		Floor float64 `json:"floor_price"`
		Avg   float64 `json:"avg_price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, err
	}
	if body.Floor == 0 {
		return 0, 0, ErrNoMatch
	}
	return body.Floor, body.Avg, nil
}

func (c *Client) fetchPortals(ctx context.Context, name string) (floor, avg float64, err error) {
	token, err := c.tokens.get(ctx)
	if err != nil {
		return 0, 0, err
	}
	u := portalsAPI + "/collections/floor?query=" + url.QueryEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.invalidate()
		return 0, 0, errors.New("portals: token rejected")
	}
	if resp.StatusCode == http.StatusNotFound {
		return 0, 0, ErrNoMatch
	}
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("portals: status %d", resp.StatusCode)
	}
	var body struct {
		Results []struct {
			FloorPrice string `json:"floor_price"`
			AvgPrice   string `json:"avg_price"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, err
	}
	if len(body.Results) == 0 {
		return 0, 0, ErrNoMatch
	}
	floor = parseTON(body.Results[0].FloorPrice)
	avg = parseTON(body.Results[0].AvgPrice)
	if floor == 0 {
		return 0, 0, ErrNoMatch
	}
	return floor, avg, nil
}

func parseTON(s string) float64 {
	var v float64
	_, _ = fmt.Sscan(s, &v)
	return v
}
