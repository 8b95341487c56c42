package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

var testKey = mustGenerateKey()

func mustGenerateKey() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	httpClient := resty.New().SetBaseURL(srv.URL).SetTimeout(5 * time.Second)
	return NewWithKey(httpClient, "test-key-id", testKey, nil), srv
}

func TestPathAllowed(t *testing.T) {
	t.Parallel()

	allowed := []string{
		"/trade-api/v2/series",
		"/trade-api/v2/events",
		"/trade-api/v2/events/KXHIGHNY-26AUG25",
		"/trade-api/v2/markets",
		"/trade-api/v2/markets/KXHIGHNY-26AUG25-B88.5/orderbook",
	}
	for _, p := range allowed {
		require.True(t, pathAllowed("GET", p), p)
	}

	denied := []string{
		"/trade-api/v2/portfolio/orders",
		"/trade-api/v2/portfolio/balance",
		"/trade-api/v2/exchange/status",
		"/trade-api/v2/seriesx",
		"/other",
	}
	for _, p := range denied {
		require.False(t, pathAllowed("GET", p), p)
	}

	// writes are never allowed, even on listed paths
	require.False(t, pathAllowed("POST", "/trade-api/v2/markets"))
	require.False(t, pathAllowed("DELETE", "/trade-api/v2/events"))
}

func TestGetRejectsUnlistedPathBeforeIO(t *testing.T) {
	t.Parallel()

	called := false
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	err := c.get(context.Background(), "/trade-api/v2/portfolio/orders", nil, nil)
	require.ErrorIs(t, err, ErrPathNotAllowed)
	require.False(t, called, "request must be blocked before any network I/O")
}

func TestSignatureVerifies(t *testing.T) {
	t.Parallel()

	c := NewWithKey(resty.New(), "id", testKey, nil)
	ts := "1756100000000"
	path := "/trade-api/v2/markets"

	sigB64, err := c.sign(ts, "GET", path)
	require.NoError(t, err)

	sig, err := base64.StdEncoding.DecodeString(sigB64)
	require.NoError(t, err)

	digest := sha256.Sum256([]byte(ts + "GET" + path))
	err = rsa.VerifyPSS(&testKey.PublicKey, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	require.NoError(t, err, "signature must verify under PSS with salt = digest length")
}

func TestAuthHeadersSent(t *testing.T) {
	t.Parallel()

	var gotKey, gotTS, gotSig string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("KALSHI-ACCESS-KEY")
		gotTS = r.Header.Get("KALSHI-ACCESS-TIMESTAMP")
		gotSig = r.Header.Get("KALSHI-ACCESS-SIGNATURE")
		w.Write([]byte(`{"series":[]}`))
	}))

	_, err := c.ListSeries(context.Background(), "Climate and Weather", nil)
	require.NoError(t, err)
	require.Equal(t, "test-key-id", gotKey)
	require.NotEmpty(t, gotTS)
	require.NotEmpty(t, gotSig)
}

func TestListAllEventsPaginates(t *testing.T) {
	t.Parallel()

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/trade-api/v2/events", r.URL.Path)
		switch r.URL.Query().Get("cursor") {
		case "":
			w.Write([]byte(`{"events":[{"event_ticker":"E1"},{"event_ticker":"E2"}],"cursor":"page2"}`))
		case "page2":
			w.Write([]byte(`{"events":[{"event_ticker":"E3"}],"cursor":""}`))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))

	events, err := c.ListAllEvents(context.Background(), "KXHIGHNY", "open", true)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "E3", events[2].EventTicker)
}

func TestAPIErrorDecoded(t *testing.T) {
	t.Parallel()

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"not_found","message":"event not found"}}`))
	}))

	_, err := c.GetEvent(context.Background(), "KXHIGHNY-00JAN00")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Equal(t, "not_found", apiErr.Code)
	require.Contains(t, apiErr.Error(), "event not found")
}

func TestGetOrderbook(t *testing.T) {
	t.Parallel()

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/trade-api/v2/markets/KXHIGHNY-26AUG25-B88.5/orderbook", r.URL.Path)
		require.Equal(t, "10", r.URL.Query().Get("depth"))
		w.Write([]byte(`{"orderbook":{"yes":[[5,100],[8,120]],"no":[[85,10],[89,40]]}}`))
	}))

	book, err := c.GetOrderbook(context.Background(), "KXHIGHNY-26AUG25-B88.5", 10)
	require.NoError(t, err)
	require.Equal(t, [][]int{{5, 100}, {8, 120}}, book.Yes)
	require.Equal(t, [][]int{{85, 10}, {89, 40}}, book.No)
}

func TestLoadPrivateKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	pkcs1 := filepath.Join(dir, "pkcs1.pem")
	require.NoError(t, os.WriteFile(pkcs1, pem.EncodeToMemory(&pem.Block{
		Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(testKey),
	}), 0o600))

	der, err := x509.MarshalPKCS8PrivateKey(testKey)
	require.NoError(t, err)
	pkcs8 := filepath.Join(dir, "pkcs8.pem")
	require.NoError(t, os.WriteFile(pkcs8, pem.EncodeToMemory(&pem.Block{
		Type: "PRIVATE KEY", Bytes: der,
	}), 0o600))

	for _, path := range []string{pkcs1, pkcs8} {
		key, err := LoadPrivateKey(path)
		require.NoError(t, err, path)
		require.True(t, key.Equal(testKey), path)
	}

	_, err = LoadPrivateKey(filepath.Join(dir, "missing.pem"))
	require.Error(t, err)
}
