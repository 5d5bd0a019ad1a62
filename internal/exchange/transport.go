package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kvantix/perpfutures-core/internal/errs"
	"github.com/kvantix/perpfutures-core/internal/logging"
)

// Credentials holds the exchange API key/secret pair, sourced from
// configuration and parsed by the caller.
type Credentials struct {
	APIKey     string
	APISecret  string
	BaseURL    string
	UseTestnet bool
}

// Transport is the shared HTTP plumbing both variant adapters build on: a
// rate-limited, signed REST client with exponential-backoff retries,
// grounded on the teacher's signedGet/signedPost pattern
// (internal/binance/futures_client.go) but collapsed into one
// request-shape-agnostic method instead of one copy per HTTP verb.
type Transport struct {
	http    *http.Client
	creds   Credentials
	limiter *Limiter
	log     *logging.Logger
	caches  *caches
	name    string // "linear" or "inverse", for error component tags
}

// NewTransport builds a Transport with a sane default HTTP client and token
// bucket; callers needing a different budget should override via options
// in the variant constructor.
func NewTransport(name string, creds Credentials, requestsPerSecond float64, burst int, log *logging.Logger) *Transport {
	return &Transport{
		http:    &http.Client{Timeout: 30 * time.Second},
		creds:   creds,
		limiter: NewLimiter(requestsPerSecond, burst),
		log:     log,
		caches:  newCaches(),
		name:    name,
	}
}

const (
	baseRetryDelay = 1 * time.Second
	maxRetries     = 3
)

// backoffDelay doubles baseRetryDelay per attempt (1s, 2s, 4s across the
// maxRetries retries), capped at 8s, for every transport call, stop orders
// included.
func backoffDelay(attempt int) time.Duration {
	d := baseRetryDelay << attempt
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}

// CachedTicker, CacheTicker, CachedFunding, CacheFunding, CachedContractInfo,
// and CacheContractInfo expose the Transport's per-instance caches — a
// lifetime-scoped value owned by the adapter rather than a global mutable
// cache — to variant adapters without leaking the cache internals.
func (t *Transport) CachedTicker(contract string, includeMarkPrice bool) (Ticker, bool) {
	return t.caches.tickers.Get(tickerKey{contract: contract, includeMarkPrice: includeMarkPrice})
}

func (t *Transport) CacheTicker(contract string, includeMarkPrice bool, v Ticker) {
	t.caches.tickers.Set(tickerKey{contract: contract, includeMarkPrice: includeMarkPrice}, v)
}

func (t *Transport) CachedFunding(contract string) (FundingRate, bool) {
	return t.caches.funding.Get(contract)
}

func (t *Transport) CacheFunding(contract string, v FundingRate) {
	t.caches.funding.Set(contract, v)
}

func (t *Transport) CachedContractInfo(contract string) (ContractInfo, bool) {
	return t.caches.contractInfoGet(contract)
}

func (t *Transport) CacheContractInfo(contract string, v ContractInfo) {
	t.caches.contractInfo.Set(contract, v)
}

// SyncClock records the offset between local time and the exchange's server
// time, so signed-request timestamps stay within the exchange's tolerance
// window even if the local clock drifts.
func (t *Transport) SyncClock(serverTime time.Time) {
	t.caches.setClockOffset(time.Since(serverTime))
}

// sign produces the HMAC-SHA256 signature the exchange expects on the query
// string, following the teacher's signing convention.
func (t *Transport) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(t.creds.APISecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// Do issues a request against path with the given query values, signing it
// when signed=true, retrying transient failures with exponential backoff up
// to maxRetries, and classifying the terminal failure by errs.Category so
// callers can branch on cause (auth, rate-limited, insufficient funds, ...)
// without parsing exchange-specific error bodies themselves.
func (t *Transport) Do(ctx context.Context, method, path string, values url.Values, signed bool) ([]byte, error) {
	if values == nil {
		values = url.Values{}
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, errs.New(errs.CategoryTransport, t.name, err)
		}

		q := values.Encode()
		if signed {
			values.Set("timestamp", strconv.FormatInt(t.caches.now().UnixMilli(), 10))
			q = values.Encode()
			q += "&signature=" + t.sign(q)
		}

		reqURL := t.creds.BaseURL + path
		var body io.Reader
		if method == http.MethodGet || method == http.MethodDelete {
			reqURL += "?" + q
		} else {
			body = strings.NewReader(q)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
		if err != nil {
			return nil, errs.New(errs.CategoryInvalidArgument, t.name, err)
		}
		if signed {
			req.Header.Set("X-API-KEY", t.creds.APIKey)
		}
		if method == http.MethodPost || method == http.MethodPut {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := t.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxRetries {
				t.log.Warnf("%s %s transport error (attempt %d/%d): %v", method, path, attempt+1, maxRetries+1, err)
				sleepOrDone(ctx, backoffDelay(attempt))
				continue
			}
			return nil, errs.New(errs.CategoryTransport, t.name, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, errs.New(errs.CategoryTransport, t.name, readErr)
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, errs.Wrap(errs.CategoryAuth, t.name, "auth failed: %s", string(respBody))
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt < maxRetries {
				wait := retryAfter(resp.Header.Get("Retry-After"), backoffDelay(attempt))
				t.log.Warnf("%s %s rate limited, waiting %v", method, path, wait)
				sleepOrDone(ctx, wait)
				continue
			}
			return nil, errs.Wrap(errs.CategoryRateLimited, t.name, "rate limited: %s", string(respBody))
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, errs.Wrap(errs.CategoryNotFound, t.name, "not found: %s", string(respBody))
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody))
			if attempt < maxRetries {
				sleepOrDone(ctx, backoffDelay(attempt))
				continue
			}
			return nil, errs.New(errs.CategoryTransport, t.name, lastErr)
		}
		if resp.StatusCode >= 400 {
			if isInsufficientMargin(respBody) {
				return nil, errs.Wrap(errs.CategoryInsufficientFunds, t.name, "insufficient margin: %s", string(respBody))
			}
			return nil, errs.Wrap(errs.CategoryInvalidArgument, t.name, "bad request: %s", string(respBody))
		}

		return respBody, nil
	}
	return nil, errs.New(errs.CategoryTransport, t.name, lastErr)
}

func isInsufficientMargin(body []byte) bool {
	var e struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return false
	}
	return e.Code == -2019 || e.Code == -2018
}

func retryAfter(header string, fallback time.Duration) time.Duration {
	if header == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
