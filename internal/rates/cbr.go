package rates

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/m3rciful/finbot/core/buildinfo"
	"github.com/m3rciful/finbot/core/logger"
)

// DefaultURL is the CBR daily rates document.
const DefaultURL = "https://www.cbr.ru/scripts/XML_daily.asp"

const defaultTimeout = 10 * time.Second

// CBROptions configures CBRClient.
type CBROptions struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// CBRClient reads the CBR XML_daily document.
type CBRClient struct {
	url  string
	http *http.Client
}

var _ Source = (*CBRClient)(nil)

// NewCBRClient builds a client; zero options select the public endpoint.
func NewCBRClient(opts CBROptions) *CBRClient {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		url = DefaultURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &CBRClient{url: url, http: client}
}

type valCurs struct {
	XMLName xml.Name `xml:"ValCurs"`
	Date    string   `xml:"Date,attr"`
	Valutes []valute `xml:"Valute"`
}

type valute struct {
	ID       string `xml:"ID,attr"`
	CharCode string `xml:"CharCode"`
	Nominal  string `xml:"Nominal"`
	Name     string `xml:"Name"`
	Value    string `xml:"Value"`
}

// Fetch downloads and decodes today's quotes.
func (c *CBRClient) Fetch(ctx context.Context) ([]Quote, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("cbr: build request: %w", err)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent("finbot"))
	req.Header.Set("Accept", "application/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cbr: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("cbr: unexpected status %s", resp.Status)
	}

	// CBR serves windows-1251.
	dec := xml.NewDecoder(resp.Body)
	dec.CharsetReader = charset.NewReaderLabel
	var doc valCurs
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("cbr: decode: %w", err)
	}

	quotes := make([]Quote, 0, len(doc.Valutes))
	for _, v := range doc.Valutes {
		quotes = append(quotes, Quote{
			Name: strings.TrimSpace(v.Name),
			Rate: strings.TrimSpace(v.Value),
		})
	}

	logger.Debug(ctx, "service.rates", "rates.fetch",
		slog.String("status", "ok"),
		slog.String("date", doc.Date),
		slog.Int("quotes", len(quotes)),
		slog.Duration("duration", time.Since(start)),
	)
	return quotes, nil
}
