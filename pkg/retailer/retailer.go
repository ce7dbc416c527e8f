package retailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energysync/pkg/common"
	"github.com/raterudder/energysync/pkg/log"
	"github.com/raterudder/energysync/pkg/types"
)

const (
	defaultBaseURL = "https://portal-api.1stenergy.com.au/"
	defaultOrigin  = "https://portal.1stenergy.com.au/"
	brandCode      = "FIRST"

	// maxErrorBody caps how much of an error response is kept on StatusError.
	maxErrorBody = 512
)

// Source is the retailer's portal API as the sync driver uses it.
type Source interface {
	// Login exchanges the configured credentials for a bearer token.
	Login(ctx context.Context) (string, error)
	// Account returns the first utility account ID on the login.
	Account(ctx context.Context, token string) (string, error)
	// Usage returns the usage chart for the local calendar date.
	Usage(ctx context.Context, token, account string, date time.Time) (types.UsageDay, error)
	// Offerings returns the account's current product offering rates.
	Offerings(ctx context.Context, token, account string) (types.Offerings, error)
}

// StatusError is returned when the portal answers with a non-200 status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client talks to the retailer portal API.
type Client struct {
	client   *http.Client
	baseURL  string
	origin   string
	username string
	password string
}

var _ Source = (*Client)(nil)

// Configured registers the retailer flags and returns a client that is ready
// once flags are parsed.
func Configured() *Client {
	baseURL := lflag.String("retailer-url", defaultBaseURL, "Base URL of the retailer portal API")
	origin := lflag.String("retailer-origin", defaultOrigin, "Origin and Referer sent on login")
	timeout := lflag.Duration("retailer-timeout", time.Minute, "Timeout for each retailer API request")
	username := lflag.String("energy-user", common.Getenv("ENERGY_USER", ""), "Retailer portal username")
	password := lflag.String("energy-password", common.Getenv("ENERGY_PASSWORD", ""), "Retailer portal password")

	c := &Client{}

	lflag.Do(func() {
		if *username == "" {
			panic("energy-user is required")
		}
		if *password == "" {
			panic("energy-password is required")
		}
		c.client = common.HTTPClient(*timeout)
		c.baseURL = *baseURL
		c.origin = *origin
		c.username = *username
		c.password = *password
	})

	return c
}

// NewClient returns a client for the portal at baseURL.
func NewClient(client *http.Client, baseURL, username, password string) *Client {
	return &Client{
		client:   client,
		baseURL:  baseURL,
		origin:   defaultOrigin,
		username: username,
		password: password,
	}
}

// Username returns the login the client authenticates as.
func (c *Client) Username() string {
	return c.username
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, params url.Values, body io.Reader) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path, err = url.JoinPath(u.Path, endpoint)
	if err != nil {
		return nil, err
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) newGetRequest(ctx context.Context, token, endpoint string, params url.Values) (*http.Request, error) {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, params, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func (c *Client) newPostJSONRequest(ctx context.Context, endpoint string, data interface{}) (*http.Request, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) doRequest(req *http.Request, dest interface{}) error {
	ctx := req.Context()
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		log.Ctx(ctx).WarnContext(
			ctx,
			"retailer api error",
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode),
		)
		return &StatusError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	if err := json.Unmarshal(body, dest); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode retailer response", slog.String("path", req.URL.Path), slog.Any("error", err))
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type loginResponse struct {
	Result struct {
		Token string `json:"token"`
	} `json:"result"`
}

// Login implements Source.
func (c *Client) Login(ctx context.Context) (string, error) {
	if c.username == "" {
		return "", errors.New("missing username")
	}
	if c.password == "" {
		return "", errors.New("missing password")
	}

	req, err := c.newPostJSONRequest(ctx, "api/users/validate-user", loginRequest{
		UserName: c.username,
		Password: c.password,
	})
	if err != nil {
		return "", err
	}
	req.Header.Set("Origin", c.origin)
	req.Header.Set("Referer", c.origin)

	var res loginResponse
	if err := c.doRequest(req, &res); err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	if res.Result.Token == "" {
		return "", errors.New("login failed: no token in response")
	}
	log.Ctx(ctx).DebugContext(ctx, "retailer login success", slog.String("username", c.username))
	return res.Result.Token, nil
}

type account struct {
	Properties []struct {
		UtilityServices []struct {
			UtilityAccountID json.RawMessage `json:"utilityAccountId"`
		} `json:"utilityServices"`
	} `json:"properties"`
}

// Account implements Source.
func (c *Client) Account(ctx context.Context, token string) (string, error) {
	req, err := c.newGetRequest(ctx, token, "api/users/accounts", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Brand-Code", brandCode)

	var accounts []account
	if err := c.doRequest(req, &accounts); err != nil {
		return "", fmt.Errorf("failed to get accounts: %w", err)
	}
	if len(accounts) == 0 ||
		len(accounts[0].Properties) == 0 ||
		len(accounts[0].Properties[0].UtilityServices) == 0 {
		return "", errors.New("no utility account found")
	}
	id, err := accountID(accounts[0].Properties[0].UtilityServices[0].UtilityAccountID)
	if err != nil {
		return "", err
	}
	log.Ctx(ctx).DebugContext(ctx, "resolved retailer account", slog.String("account", id))
	return id, nil
}

// accountID accepts the ID as either a JSON number or string.
func accountID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", errors.New("empty utility account id")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid utility account id %s", string(raw))
	}
	return n.String(), nil
}

// Usage implements Source.
func (c *Client) Usage(ctx context.Context, token, account string, date time.Time) (types.UsageDay, error) {
	params := url.Values{}
	params.Set("year", strconv.Itoa(date.Year()))
	params.Set("month", strconv.Itoa(int(date.Month())))
	params.Set("day", strconv.Itoa(date.Day()))
	params.Set("productType", "POWER")
	params.Set("viewInterval", "day")
	params.Set("viewMode", "USAGE")

	req, err := c.newGetRequest(ctx, token, "api/utility/"+account+"/usage-chart", params)
	if err != nil {
		return types.UsageDay{}, err
	}

	var day types.UsageDay
	if err := c.doRequest(req, &day); err != nil {
		return types.UsageDay{}, fmt.Errorf("failed to get usage for %s: %w", date.Format(types.DateFormat), err)
	}
	return day, nil
}

// Offerings implements Source.
func (c *Client) Offerings(ctx context.Context, token, account string) (types.Offerings, error) {
	req, err := c.newGetRequest(ctx, token, "api/product-offerings/"+account, nil)
	if err != nil {
		return types.Offerings{}, err
	}

	var o types.Offerings
	if err := c.doRequest(req, &o); err != nil {
		return types.Offerings{}, fmt.Errorf("failed to get offerings: %w", err)
	}
	return o, nil
}
