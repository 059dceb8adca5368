package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/louiscollinsjr/getWork-run/internal/fetch"
	"github.com/louiscollinsjr/getWork-run/internal/model"
	"github.com/louiscollinsjr/getWork-run/internal/normalize"
)

var linkedin = model.Source{Name: "linkedin", RequiresProxy: true}

func TestFetch_MapsRowsToPostings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("site_name") != "linkedin" {
			t.Errorf("site_name = %q, want linkedin", q.Get("site_name"))
		}
		if q.Get("results_wanted") != "25" {
			t.Errorf("results_wanted = %q, want 25", q.Get("results_wanted"))
		}
		if q.Get("use_proxy") != "true" {
			t.Error("proxy-requiring source must set use_proxy")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 1, "jobs": [
			{"title": " Staff Engineer ", "company": "acme corp", "location": "Remote",
			 "description": "build   things", "job_url": "https://example.com/j/1",
			 "is_remote": true, "date_posted": "2026-08-29"}
		]}`))
	}))
	defer srv.Close()

	c := fetch.NewClient(srv.URL, 5*time.Second)
	postings, err := c.Fetch(context.Background(), linkedin, "staff engineer", "Remote", 25, 48)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("len(postings) = %d, want 1", len(postings))
	}

	p := postings[0]
	if p.Title != "Staff Engineer" {
		t.Errorf("Title = %q, want trimmed", p.Title)
	}
	if p.Company != "Acme" {
		t.Errorf("Company = %q, want normalised %q", p.Company, "Acme")
	}
	if p.Description != "build things" {
		t.Errorf("Description = %q, want whitespace collapsed", p.Description)
	}
	if p.Source != "linkedin" || p.SearchTerm != "staff engineer" || p.SearchLocation != "Remote" {
		t.Errorf("collection metadata not attached: %+v", p)
	}
	if !p.Remote {
		t.Error("Remote flag lost in mapping")
	}
}

func TestFetch_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded upstream", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := fetch.NewClient(srv.URL, 5*time.Second)
	if _, err := c.Fetch(context.Background(), linkedin, "x", "y", 10, 24); err == nil {
		t.Error("non-200 response should surface as an error")
	}
}

func TestFetch_HonorsContextTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := fetch.NewClient(srv.URL, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Fetch(ctx, linkedin, "x", "y", 10, 24); err == nil {
		t.Error("hanging fetcher must fail once the caller's timeout expires")
	}
}

func TestToPosting_DefaultsMissingCompany(t *testing.T) {
	p := fetch.ToPosting(normalize.Raw{Title: "Engineer"}, "indeed", "engineer", "Remote", time.Now())
	if p.Company != normalize.UnknownCompany {
		t.Errorf("Company = %q, want placeholder", p.Company)
	}
}
