package psp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// Client is the payment gateway surface checkout depends on.
type Client interface {
	CreateInvoice(ctx context.Context, req *types.XenditInvoiceRequest) (*types.XenditInvoice, error)
	CreateVirtualAccount(ctx context.Context, req *types.XenditVARequest) (*types.XenditVA, error)
	CreateEWalletCharge(ctx context.Context, req *types.XenditEWalletRequest) (*types.XenditEWalletCharge, error)
	CreateQRCode(ctx context.Context, req *types.XenditQRRequest) (*types.XenditQRCode, error)
}

type XenditClient struct {
	httpClient *http.Client
	secretKey  string
	baseURL    string
}

func NewXenditClient(cfg config.XenditConfig) *XenditClient {
	return &XenditClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: newrelic.NewRoundTripper(&http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
				DisableKeepAlives:   false,
			}),
		},
		secretKey: cfg.SecretKey,
		baseURL:   cfg.BaseURL,
	}
}

func (c *XenditClient) CreateInvoice(ctx context.Context, req *types.XenditInvoiceRequest) (*types.XenditInvoice, error) {
	var resp types.XenditInvoice
	if err := c.do(ctx, http.MethodPost, "/v2/invoices", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *XenditClient) CreateVirtualAccount(ctx context.Context, req *types.XenditVARequest) (*types.XenditVA, error) {
	var resp types.XenditVA
	if err := c.do(ctx, http.MethodPost, "/callback_virtual_accounts", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *XenditClient) CreateEWalletCharge(ctx context.Context, req *types.XenditEWalletRequest) (*types.XenditEWalletCharge, error) {
	var resp types.XenditEWalletCharge
	if err := c.do(ctx, http.MethodPost, "/ewallets/charges", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *XenditClient) CreateQRCode(ctx context.Context, req *types.XenditQRRequest) (*types.XenditQRCode, error) {
	var resp types.XenditQRCode
	if err := c.do(ctx, http.MethodPost, "/qr_codes", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends a JSON request and decodes a 2xx response into out. Every failure
// is an ErrPaymentProvider.
func (c *XenditClient) do(ctx context.Context, method, path string, body, out any) error {
	log := middleware.GetLogger(ctx)
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return apperror.ErrPaymentProvider.Wrap(fmt.Errorf("marshal request: %w", err))
		}
		reqBody = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return apperror.ErrPaymentProvider.Wrap(fmt.Errorf("create request: %w", err))
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Content-Type", "application/json")
	if path == "/qr_codes" {
		req.Header.Set("api-version", "2022-07-31")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		log.Error().Err(err).
			Str("method", method).
			Str("url", url).
			Int64("duration_ms", duration).
			Msg("Xendit request failed")
		return apperror.ErrPaymentProvider.Wrap(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperror.ErrPaymentProvider.Wrap(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("method", method).
			Str("url", url).
			Int64("duration_ms", duration).
			Str("body", string(respBody)).
			Msg("Xendit API error response")
		return apperror.ErrPaymentProvider.Wrap(fmt.Errorf("xendit status=%d body=%s", resp.StatusCode, respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return apperror.ErrPaymentProvider.Wrap(fmt.Errorf("parse response: %w", err))
	}

	log.Info().
		Int("status", resp.StatusCode).
		Str("method", method).
		Str("url", url).
		Int64("duration_ms", duration).
		Msg("Xendit API request successful")
	return nil
}
