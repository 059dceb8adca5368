// Package fetch calls the external scraper API that does the actual page
// fetching. The scheduler depends only on its Fetch signature; errors are
// opaque and handled identically by the retry controller.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/louiscollinsjr/getWork-run/internal/model"
	"github.com/louiscollinsjr/getWork-run/internal/normalize"
)

// Client fetches job postings from the scraper API over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs a Client with a shared HTTP client. The timeout here
// is a transport-level ceiling; callers impose their own per-request
// timeout via context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// apiResponse mirrors the scraper API's top-level JSON response.
type apiResponse struct {
	Jobs  []normalize.Raw `json:"jobs"`
	Count int             `json:"count"`
}

// Fetch retrieves postings for one (source, term, location) combination and
// maps each raw row to a validated model.Posting.
func (c *Client) Fetch(ctx context.Context, source model.Source, term, location string, resultsWanted, hoursOld int) ([]model.Posting, error) {
	params := url.Values{}
	params.Set("site_name", source.Name)
	params.Set("search_term", term)
	params.Set("location", location)
	params.Set("results_wanted", strconv.Itoa(resultsWanted))
	params.Set("hours_old", strconv.Itoa(hoursOld))
	if source.RequiresProxy {
		params.Set("use_proxy", "true")
	}
	if source.Name == "google" {
		// Google needs a phrased query rather than separate term/location.
		params.Set("google_search_term", fmt.Sprintf("%s jobs near %s since yesterday", term, location))
	}

	reqURL := c.baseURL + "/v1/jobs?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scraper API returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	now := time.Now().UTC()
	postings := make([]model.Posting, 0, len(apiResp.Jobs))
	for _, raw := range apiResp.Jobs {
		postings = append(postings, ToPosting(raw, source.Name, term, location, now))
	}
	return postings, nil
}

// ToPosting maps the loosely-typed wire row to a Posting, validating and
// defaulting every field exactly once.
func ToPosting(r normalize.Raw, source, term, location string, collectedAt time.Time) model.Posting {
	return model.Posting{
		Title:          normalize.Field(r.Title),
		Company:        normalize.Company(r),
		Location:       normalize.Field(r.Location),
		Description:    normalize.Description(r.Description),
		SalaryText:     normalize.Field(r.Salary),
		URL:            normalize.Field(r.JobURL),
		PostedAt:       normalize.Field(r.DatePosted),
		Remote:         r.Remote,
		Source:         source,
		SearchTerm:     term,
		SearchLocation: location,
		CollectedAt:    collectedAt,
	}
}
