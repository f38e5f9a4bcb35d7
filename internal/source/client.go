// Package source talks to the tenant's external commerce API.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultPageSize = 250
	maxPages        = 1000
)

// Credentials are the decrypted values needed to reach a tenant's store
type Credentials struct {
	StoreName    string
	APIURL       string
	ClientID     string
	ClientSecret string
}

// Product is one item of the remote catalog
type Product struct {
	ExternalID string            `json:"id"`
	Title      string            `json:"title"`
	SKU        string            `json:"sku"`
	Price      float64           `json:"price"`
	Currency   string            `json:"currency"`
	Inventory  int               `json:"inventory"`
	Status     string            `json:"status"`
	ImageURL   string            `json:"image_url"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Client returns the tenant's full current product list
type Client interface {
	FetchAllProducts(ctx context.Context, creds Credentials) ([]Product, error)
}

type productPage struct {
	Products []Product `json:"products"`
	HasMore  bool      `json:"has_more"`
}

// HTTPClient pages through GET {api_url}/products using an OAuth2 client-credentials token
type HTTPClient struct {
	timeout  time.Duration
	pageSize int
	base     *http.Client
	logger   *zap.Logger
}

func NewHTTPClient(timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		timeout:  timeout,
		pageSize: defaultPageSize,
		base:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (c *HTTPClient) FetchAllProducts(ctx context.Context, creds Credentials) ([]Product, error) {
	if creds.APIURL == "" {
		return nil, newError(KindFatal, 0, errors.New("store api url is empty"))
	}
	apiURL := strings.TrimRight(creds.APIURL, "/")

	oauthCfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     apiURL + "/oauth/token",
	}
	httpClient := oauthCfg.Client(context.WithValue(ctx, oauth2.HTTPClient, c.base))
	httpClient.Timeout = c.timeout

	var all []Product
	for page := 1; page <= maxPages; page++ {
		batch, err := c.fetchPage(ctx, httpClient, apiURL, page)
		if err != nil {
			return nil, err
		}
		all = append(all, batch.Products...)
		if !batch.HasMore || len(batch.Products) == 0 {
			c.logger.Debug("Fetched product catalog",
				zap.String("store", creds.StoreName),
				zap.Int("pages", page),
				zap.Int("products", len(all)))
			return all, nil
		}
	}
	return nil, newError(KindFatal, 0, fmt.Errorf("product listing exceeded %d pages", maxPages))
}

func (c *HTTPClient) fetchPage(ctx context.Context, httpClient *http.Client, apiURL string, page int) (*productPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/products?"+q.Encode(), nil)
	if err != nil {
		return nil, newError(KindFatal, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, newError(kindForStatus(resp.StatusCode), resp.StatusCode,
			fmt.Errorf("GET /products page %d: %s", page, strings.TrimSpace(string(body))))
	}

	var out productPage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, newError(KindFatal, resp.StatusCode, fmt.Errorf("decode products page %d: %w", page, err))
	}
	return &out, nil
}

// classifyTransportError separates token exchange rejections from network trouble
func classifyTransportError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		status := re.Response.StatusCode
		if status == http.StatusBadRequest {
			// invalid_client is reported as 400 by most providers
			return newError(KindUnauthorized, status, err)
		}
		return newError(kindForStatus(status), status, err)
	}
	return newError(KindTransient, 0, err)
}
