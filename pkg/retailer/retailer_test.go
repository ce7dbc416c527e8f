package retailer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raterudder/energysync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.Client(), ts.URL+"/", "user@example.com", "secret")
}

func TestLogin(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/users/validate-user", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, defaultOrigin, r.Header.Get("Origin"))
			assert.Equal(t, defaultOrigin, r.Header.Get("Referer"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "user@example.com", body["userName"])
			assert.Equal(t, "secret", body["password"])

			json.NewEncoder(w).Encode(map[string]interface{}{
				"result": map[string]interface{}{"token": "tok-123"},
			})
		})

		token, err := c.Login(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-123", token)
	})

	t.Run("Unauthorized", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, strings.Repeat("x", 2000), http.StatusUnauthorized)
		})

		_, err := c.Login(context.Background())
		require.Error(t, err)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
		assert.Len(t, se.Body, maxErrorBody)
	})

	t.Run("MissingToken", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"result":{}}`)
		})

		_, err := c.Login(context.Background())
		assert.ErrorContains(t, err, "no token")
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		c := NewClient(http.DefaultClient, "http://127.0.0.1:0/", "", "")
		_, err := c.Login(context.Background())
		assert.ErrorContains(t, err, "missing username")
	})
}

func TestAccount(t *testing.T) {
	t.Run("NumericID", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/users/accounts", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, "FIRST", r.Header.Get("Brand-Code"))
			io.WriteString(w, `[{"properties":[{"utilityServices":[{"utilityAccountId":1234567}]}]},{"properties":[]}]`)
		})

		account, err := c.Account(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "1234567", account)
	})

	t.Run("StringID", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `[{"properties":[{"utilityServices":[{"utilityAccountId":"A-99"}]}]}]`)
		})

		account, err := c.Account(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "A-99", account)
	})

	t.Run("NoAccounts", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `[]`)
		})

		_, err := c.Account(context.Background(), "tok")
		assert.ErrorContains(t, err, "no utility account")
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `[{"properties":`)
		})

		_, err := c.Account(context.Background(), "tok")
		assert.ErrorContains(t, err, "failed to decode")
	})
}

func TestUsage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/utility/1234567/usage-chart", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "2024", q.Get("year"))
		assert.Equal(t, "1", q.Get("month"))
		assert.Equal(t, "2", q.Get("day"))
		assert.Equal(t, "POWER", q.Get("productType"))
		assert.Equal(t, "day", q.Get("viewInterval"))
		assert.Equal(t, "USAGE", q.Get("viewMode"))
		io.WriteString(w, `{"series":[{"name":"General","data":[{"category":"07:00","value":1.5},{"category":"08:00","value":null}]}]}`)
	})

	date := time.Date(2024, 1, 2, 0, 0, 0, 0, types.FixedLocation(types.DefaultLocalOffset))
	day, err := c.Usage(context.Background(), "tok", "1234567", date)
	require.NoError(t, err)
	require.Len(t, day.Series, 1)
	assert.Equal(t, "General", day.Series[0].Name)
	require.Len(t, day.Series[0].Data, 2)
	require.NotNil(t, day.Series[0].Data[0].Value)
	assert.Equal(t, 1.5, *day.Series[0].Data[0].Value)
	assert.Nil(t, day.Series[0].Data[1].Value)
}

func TestUsageServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err := c.Usage(context.Background(), "tok", "1", date)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024-01-02")
	assert.Contains(t, err.Error(), "status 500")
}

func TestOfferings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/product-offerings/1234567", r.URL.Path)
		io.WriteString(w, `{"rates":[{"description":"Peak","rate":"24.0"},{"description":"Supply","rate":110.5}]}`)
	})

	o, err := c.Offerings(context.Background(), "tok", "1234567")
	require.NoError(t, err)
	require.Len(t, o.Rates, 2)
	assert.Equal(t, "Peak", o.Rates[0].Description)
	assert.Equal(t, "24.0", o.Rates[0].RateString())
	assert.Equal(t, "110.5", o.Rates[1].RateString())
}
