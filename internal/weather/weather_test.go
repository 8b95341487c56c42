package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func testHTTPClient() *resty.Client {
	return resty.New().SetTimeout(5 * time.Second)
}

func TestLatestObservation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stations/KNYC/observations/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/geo+json")
		fmt.Fprint(w, `{"properties":{"timestamp":"2026-08-25T19:51:00Z","temperature":{"value":32.8}}}`)
	}))
	defer srv.Close()

	api := NewAPIWithClient(testHTTPClient(), srv.URL, nil)
	obs, err := api.LatestObservation(context.Background(), "KNYC")
	require.NoError(t, err)
	require.NotNil(t, obs.TempC)
	require.InDelta(t, 32.8, *obs.TempC, 0.001)
	require.Equal(t, time.Date(2026, 8, 25, 19, 51, 0, 0, time.UTC), obs.Timestamp)
}

func TestLatestObservationNullTemp(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		fmt.Fprint(w, `{"properties":{"timestamp":"2026-08-25T19:51:00Z","temperature":{"value":null}}}`)
	}))
	defer srv.Close()

	api := NewAPIWithClient(testHTTPClient(), srv.URL, nil)
	obs, err := api.LatestObservation(context.Background(), "KNYC")
	require.NoError(t, err)
	require.Nil(t, obs.TempC)
}

func TestHourlyForecastTwoHop(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		switch r.URL.Path {
		case "/points/40.7830,-73.9670":
			fmt.Fprintf(w, `{"properties":{"forecastHourly":"%s/gridpoints/OKX/33,37/forecast/hourly"}}`, srv.URL)
		case "/gridpoints/OKX/33,37/forecast/hourly":
			fmt.Fprint(w, `{"properties":{"periods":[
				{"startTime":"2026-08-25T04:00:00Z","temperature":78,"temperatureUnit":"F"},
				{"startTime":"2026-08-25T15:00:00Z","temperature":90,"temperatureUnit":"F"},
				{"startTime":"2026-08-26T06:00:00Z","temperature":80,"temperatureUnit":"F"}]}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	api := NewAPIWithClient(testHTTPClient(), srv.URL, nil)
	start := time.Date(2026, 8, 25, 5, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	hours, err := api.HourlyForecast(context.Background(), 40.783, -73.967, start, end)
	require.NoError(t, err)

	// first period precedes the window, last one is past it
	require.Len(t, hours, 1)
	require.Equal(t, 90.0, hours[0].TempF)
}

func TestRawMETARFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/data/observations/metar/stations/KNYC.TXT", r.URL.Path)
		fmt.Fprint(w, "2026/08/25 19:51\nKNYC 251951Z 33/17 RMK T03280167")
	}))
	defer srv.Close()

	s := NewScraperWithClient(testHTTPClient(), srv.URL, srv.URL, nil)
	rep, err := s.RawMETAR(context.Background(), "knyc")
	require.NoError(t, err)
	require.NotNil(t, rep.PreciseTempC)
	require.InDelta(t, 32.8, *rep.PreciseTempC, 0.001)
}

func TestParseCurrentConditions(t *testing.T) {
	t.Parallel()

	temp := ParseCurrentConditions(`<table><tr><td>Temperature</td><td>91.9&deg;F (33.3&deg;C)</td></tr></table>`)
	require.NotNil(t, temp)
	require.InDelta(t, 91.9, *temp, 0.001)

	require.Nil(t, ParseCurrentConditions("<html>station down</html>"))
}

func TestParseObsHistory(t *testing.T) {
	t.Parallel()

	html := `
<table>
<tr><td>25</td><td>3:51 pm</td><td>S 8</td><td>10.00</td><td>Fair</td><td>CLR</td><td>91</td><td>62</td><td>38%</td></tr>
<tr><td>25</td><td>2:51 pm</td><td>S 9</td><td>10.00</td><td>Fair</td><td>CLR</td><td>89</td><td>61</td><td>40%</td></tr>
<tr><td>header</td></tr>
</table>`
	maxTemp := ParseObsHistory(html)
	require.NotNil(t, maxTemp)
	require.Equal(t, 91, *maxTemp)

	require.Nil(t, ParseObsHistory("<table></table>"))
}

func TestParseCLI(t *testing.T) {
	t.Parallel()

	product := `
CLIMATE REPORT
NATIONAL WEATHER SERVICE NEW YORK, NY
...THE CENTRAL PARK NY CLIMATE SUMMARY FOR AUGUST 25 2026...
VALID TODAY AS OF 0400 PM LOCAL TIME.

TEMPERATURE (F)
 TODAY
  MAXIMUM         91R   309 PM
  MINIMUM         72    551 AM

&& THIS IS A PRELIMINARY REPORT
`
	rep := ParseCLI(product)
	require.NotNil(t, rep)
	require.Equal(t, 91, rep.MaxF)
	require.Equal(t, "309 PM", rep.MaxTime)
	require.True(t, rep.Preliminary)

	require.Nil(t, ParseCLI("no temperature data here"))
}

func TestPreliminaryCLIQuery(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/product.php", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "CLI", q.Get("product"))
		require.Equal(t, "NYC", q.Get("issuedby"))
		fmt.Fprint(w, "TEMPERATURE (F)\n TODAY\n  MAXIMUM         88    251 PM\n")
	}))
	defer srv.Close()

	s := NewScraperWithClient(testHTTPClient(), srv.URL, srv.URL, nil)
	rep, err := s.PreliminaryCLI(context.Background(), "nyc")
	require.NoError(t, err)
	require.Equal(t, 88, rep.MaxF)
	require.False(t, rep.Preliminary)
}
