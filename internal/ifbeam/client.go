// Package ifbeam queries the Fermilab Intensity Frontier beam database
// (IFBeam DB) for beam-intensity measurements.
package ifbeam

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the production IFBeam DB data endpoint.
	DefaultBaseURL = "https://dbdata1vm.fnal.gov:9443/ifbeam/data"
	// DefaultDevice is the BNB toroid monitor SBND reads POT from.
	DefaultDevice = "E:TOR875"
	// DefaultEvent is the event selector sent with every query.
	DefaultEvent = "e,1d"
)

// Sample is the result of one interval query: the number of spills
// recorded in the interval and their summed POT.
type Sample struct {
	Spills int     `json:"spills"`
	POT    float64 `json:"pot"`
}

// Metrics receives one observation per outbound IFBeam request.
// statusCode is zero when the request never produced a response.
type Metrics interface {
	RecordIFBeamRequest(statusCode int, duration time.Duration, err error)
}

type Config struct {
	BaseURL string
	Device  string
	Event   string
	Timeout time.Duration

	// HTTPClient overrides the transport; when set, Timeout is ignored.
	HTTPClient *http.Client
}

// Client fetches POT samples from IFBeam DB. It is stateless and safe
// for concurrent use.
type Client struct {
	baseURL string
	device  string
	event   string
	client  *http.Client
	metrics Metrics
}

func NewClient(cfg Config, metrics Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Device == "" {
		cfg.Device = DefaultDevice
	}
	if cfg.Event == "" {
		cfg.Event = DefaultEvent
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		device:  cfg.Device,
		event:   cfg.Event,
		client:  httpc,
		metrics: metrics,
	}
}

// Device returns the configured device identifier.
func (c *Client) Device() string { return c.device }

// POTInterval queries IFBeam DB for the spill count and total POT in
// [t0, t1]. Both timestamps must be UTC-normalized by the caller; they
// are sent to the service as integer Unix epoch seconds without any
// timezone adjustment. An interval with no recorded spills yields a
// zero Sample and no error.
func (c *Client) POTInterval(ctx context.Context, t0, t1 time.Time) (Sample, error) {
	q := url.Values{}
	q.Set("v", c.device)
	q.Set("e", c.event)
	q.Set("t0", strconv.FormatInt(t0.Unix(), 10))
	q.Set("t1", strconv.FormatInt(t1.Unix(), 10))
	q.Set("f", "csv")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data?"+q.Encode(), nil)
	if err != nil {
		return Sample{}, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.observe(0, start, err)
		return Sample{}, fmt.Errorf("query ifbeam: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		c.observe(resp.StatusCode, start, statusErr)
		return Sample{}, statusErr
	}

	sample, err := parseCSV(bufio.NewScanner(resp.Body))
	c.observe(resp.StatusCode, start, err)
	if err != nil {
		return Sample{}, err
	}
	return sample, nil
}

// parseCSV reads the per-spill CSV returned by IFBeam: a header line
// followed by one line per spill whose last comma-separated field is
// the POT measurement.
func parseCSV(scanner *bufio.Scanner) (Sample, error) {
	var sample Sample
	line := 0
	for scanner.Scan() {
		line++
		if line == 1 {
			// header
			continue
		}
		text := scanner.Text()
		if text == "" {
			continue
		}
		field := text[strings.LastIndexByte(text, ',')+1:]
		value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return Sample{}, &ParseError{Line: line, Field: field, Err: err}
		}
		sample.Spills++
		sample.POT += value
	}
	if err := scanner.Err(); err != nil {
		return Sample{}, fmt.Errorf("read response body: %w", err)
	}
	return sample, nil
}

func (c *Client) observe(statusCode int, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordIFBeamRequest(statusCode, time.Since(start), err)
}
