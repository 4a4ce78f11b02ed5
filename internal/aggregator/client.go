package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recharge-wallet/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	pathOperators = "/recharge/getoperator"
	pathRecharge  = "/recharge/dorecharge"
	pathStatus    = "/recharge/status"
	pathBanks     = "/recharge/banklist"

	defaultTimeout = 15 * time.Second
)

type Config struct {
	BaseURL       string
	PartnerID     string
	AuthorisedKey string
	JWTKey        string
	Timeout       time.Duration
}

// Client talks to the recharge provider. It keeps no state between calls beyond the
// underlying http.Client; every request carries a freshly signed token.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger

	now      func() time.Time
	newReqID func() string
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "aggregator").Logger(),
		now:        time.Now,
		newReqID:   func() string { return uuid.NewString() },
	}
}

type OperatorInfo struct {
	Code     string
	Name     string
	Category string
}

type BankInfo struct {
	Code string
	Name string
	IFSC string
}

type envelope struct {
	Status       bool            `json:"status"`
	ResponseCode flexString      `json:"response_code"`
	Message      string          `json:"message"`
	Data         json.RawMessage `json:"data"`
}

type operatorRecord struct {
	ID       flexString `json:"id"`
	Name     string     `json:"name"`
	Category string     `json:"category"`
}

type bankRecord struct {
	ID       flexString `json:"id"`
	BankID   flexString `json:"bankid"`
	BankName string     `json:"bankname"`
	IFSC     string     `json:"ifsc"`
}

type rechargeRequest struct {
	Operator    string      `json:"operator"`
	CANumber    string      `json:"canumber"`
	Amount      json.Number `json:"amount"`
	ReferenceID string      `json:"referenceid"`
}

type rechargeResponse struct {
	Status       *bool      `json:"status"`
	ResponseCode flexString `json:"response_code"`
	OperatorID   flexString `json:"operatorid"`
	AckNo        flexString `json:"ackno"`
	Message      string     `json:"message"`
}

type statusRequest struct {
	ReferenceID string `json:"referenceid"`
}

type statusResponse struct {
	Status       bool       `json:"status"`
	ResponseCode flexString `json:"response_code"`
	Message      string     `json:"message"`
	Data         struct {
		Status     flexString `json:"status"`
		OperatorID flexString `json:"operatorid"`
		AckNo      flexString `json:"ackno"`
	} `json:"data"`
}

func (c *Client) GetOperators(ctx context.Context) ([]OperatorInfo, error) {
	var records []operatorRecord
	if err := c.fetchList(ctx, pathOperators, &records); err != nil {
		return nil, err
	}

	operators := make([]OperatorInfo, 0, len(records))
	for _, r := range records {
		if r.ID == "" || r.Name == "" {
			continue
		}
		operators = append(operators, OperatorInfo{Code: string(r.ID), Name: r.Name, Category: r.Category})
	}
	return operators, nil
}

func (c *Client) GetBanks(ctx context.Context) ([]BankInfo, error) {
	var records []bankRecord
	if err := c.fetchList(ctx, pathBanks, &records); err != nil {
		return nil, err
	}

	banks := make([]BankInfo, 0, len(records))
	for _, r := range records {
		code := r.BankID
		if code == "" {
			code = r.ID
		}
		if code == "" || r.BankName == "" {
			continue
		}
		banks = append(banks, BankInfo{Code: string(code), Name: r.BankName, IFSC: r.IFSC})
	}
	return banks, nil
}

func (c *Client) fetchList(ctx context.Context, path string, out any) error {
	status, body, err := c.post(ctx, path, struct{}{})
	if err != nil {
		return fmt.Errorf("aggregator %s: %w", path, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("aggregator %s: unexpected status %d", path, status)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("aggregator %s: invalid response: %w", path, err)
	}
	if !env.Status {
		return fmt.Errorf("aggregator %s: %s", path, env.Message)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("aggregator %s: invalid data: %w", path, err)
	}
	return nil
}

// DoRecharge submits a recharge. Network failures and ambiguous replies come back as
// OutcomeIndeterminate with a nil error; the caller must not treat them as failures.
func (c *Client) DoRecharge(ctx context.Context, operatorCode, number string, amount decimal.Decimal, referenceID string) Result {
	start := time.Now()
	status, body, err := c.post(ctx, pathRecharge, rechargeRequest{
		Operator:    operatorCode,
		CANumber:    number,
		Amount:      json.Number(amount.StringFixed(2)),
		ReferenceID: referenceID,
	})

	var result Result
	if err != nil {
		result = indeterminate(err)
	} else {
		result = classifyRecharge(status, body)
	}
	c.observe("dorecharge", start, result)

	c.logger.Info().
		Str("reference_id", referenceID).
		Str("operator", operatorCode).
		Str("outcome", result.Outcome.String()).
		Str("provider_txn_id", result.ProviderTransactionID).
		Str("message", result.Message).
		Msg("Recharge submitted")

	return result
}

// CheckStatus asks the provider for the authoritative state of referenceID.
func (c *Client) CheckStatus(ctx context.Context, referenceID string) Result {
	start := time.Now()
	status, body, err := c.post(ctx, pathStatus, statusRequest{ReferenceID: referenceID})

	var result Result
	if err != nil {
		result = indeterminate(err)
	} else {
		result = classifyStatus(status, body)
	}
	c.observe("status", start, result)

	c.logger.Debug().
		Str("reference_id", referenceID).
		Str("outcome", result.Outcome.String()).
		Msg("Recharge status checked")

	return result
}

func (c *Client) observe(endpoint string, start time.Time, result Result) {
	metrics.AggregatorRequestDuration.
		WithLabelValues(endpoint, result.Outcome.String()).
		Observe(time.Since(start).Seconds())
}

func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}

	reqID := c.newReqID()
	token, err := Sign([]byte(c.cfg.JWTKey), c.cfg.PartnerID, c.now().Unix(), reqID)
	if err != nil {
		return 0, nil, fmt.Errorf("sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorisedkey", c.cfg.AuthorisedKey)
	req.Header.Set("Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug().
		Str("path", path).
		Str("req_id", reqID).
		Int("status", resp.StatusCode).
		RawJSON("body", safeRaw(respBody)).
		Msg("Aggregator response")

	return resp.StatusCode, respBody, nil
}

// flexString accepts both JSON strings and numbers; the provider is inconsistent.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("expected string or number")
	}
	*f = flexString(n.String())
	return nil
}
