package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/metrics"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

const defaultEastmoneyURL = "https://push2his.eastmoney.com"

// EastmoneyProvider implements Provider using the public Eastmoney kline API (no API key needed)
type EastmoneyProvider struct {
	client  *http.Client
	baseURL string
	calls   metrics.Recorder
}

// NewEastmoneyProvider creates new Eastmoney price provider.
// calls may be nil; when set every request is recorded there.
func NewEastmoneyProvider(baseURL string, timeout time.Duration, calls metrics.Recorder) *EastmoneyProvider {
	if baseURL == "" {
		baseURL = defaultEastmoneyURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EastmoneyProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		calls:   calls,
	}
}

type klineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// GetDailyBars returns forward-adjusted daily bars
func (p *EastmoneyProvider) GetDailyBars(ctx context.Context, code string, days int) ([]models.PriceBar, error) {
	if days <= 0 {
		return []models.PriceBar{}, nil
	}

	resp, err := p.fetch(ctx, code, days)
	if err != nil {
		return nil, err
	}

	bars := make([]models.PriceBar, 0, len(resp.Data.Klines))
	for _, line := range resp.Data.Klines {
		bar, err := parseKline(line)
		if err != nil {
			logger.Warn("skipping malformed kline",
				zap.String("instrument", code),
				zap.String("line", line),
				zap.Error(err),
			)
			continue
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

// GetName returns the instrument's short name
func (p *EastmoneyProvider) GetName(ctx context.Context, code string) (string, error) {
	resp, err := p.fetch(ctx, code, 1)
	if err != nil {
		return "", err
	}
	if resp.Data.Name == "" {
		return "", ErrNotFound
	}
	return resp.Data.Name, nil
}

func (p *EastmoneyProvider) fetch(ctx context.Context, code string, limit int) (resp *klineResponse, err error) {
	secID, err := SecurityID(code)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() { p.record(code, started, err) }()

	query := url.Values{}
	query.Set("secid", secID)
	query.Set("fields1", "f1,f2,f3,f4,f5,f6")
	query.Set("fields2", "f51,f52,f53,f54,f55,f56")
	query.Set("klt", "101")
	query.Set("fqt", "1")
	query.Set("end", "20500101")
	query.Set("lmt", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/qt/stock/kline/get?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpResp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(body))
	}

	var result klineResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}

	return &result, nil
}

func (p *EastmoneyProvider) record(code string, started time.Time, err error) {
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("eastmoney").Inc()
	}
	if p.calls == nil {
		return
	}
	_ = p.calls.Add(&metrics.UpstreamCallMetric{
		Timestamp:  started,
		Service:    "eastmoney",
		Instrument: code,
		DurationMs: int(time.Since(started).Milliseconds()),
		Success:    err == nil,
	})
}

// SecurityID maps a six-digit A-share code to the exchange-prefixed id:
// Shanghai codes (6xxxxx) get 1, everything else Shenzhen's 0
func SecurityID(code string) (string, error) {
	if len(code) != 6 {
		return "", fmt.Errorf("%w: %q is not a six-digit code", ErrNotFound, code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q is not a six-digit code", ErrNotFound, code)
		}
	}
	if code[0] == '6' {
		return "1." + code, nil
	}
	return "0." + code, nil
}

// parseKline reads "date,open,close,high,low,volume[,...]"
func parseKline(line string) (models.PriceBar, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 6 {
		return models.PriceBar{}, fmt.Errorf("expected at least 6 fields, got %d", len(fields))
	}

	values := make([]float64, 5)
	for i := range values {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return models.PriceBar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}

	return models.PriceBar{
		Date:   fields[0],
		Open:   values[0],
		Close:  values[1],
		High:   values[2],
		Low:    values[3],
		Volume: values[4],
	}, nil
}
