package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Client fetches quotes from an HTTP price API that answers
// GET <base>?function=GLOBAL_QUOTE&symbol=<asset>&apikey=<key>
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a price API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// globalQuoteResponse is the JSON body of a quote request
type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
	Note         string `json:"Note"`
	ErrorMessage string `json:"Error Message"`
}

// GetPrice fetches the latest price for asset
func (c *Client) GetPrice(ctx context.Context, asset string) (*Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", asset)
	params.Set("apikey", c.apiKey)

	resp, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var quoteResp globalQuoteResponse
	if err := json.Unmarshal(body, &quoteResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if quoteResp.ErrorMessage != "" {
		return nil, fmt.Errorf("price API error: %s", quoteResp.ErrorMessage)
	}
	if quoteResp.GlobalQuote.Price == "" {
		return nil, fmt.Errorf("%w: %s", ErrPriceNotFound, asset)
	}

	price, err := decimal.NewFromString(quoteResp.GlobalQuote.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}

	return &Quote{
		Asset:     asset,
		Price:     price,
		UpdatedAt: c.now(),
	}, nil
}

func (c *Client) doRequest(ctx context.Context, params url.Values) (*http.Response, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	return resp, nil
}
