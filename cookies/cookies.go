// Package cookies keeps the persisted browser cookies used by the crawler.
package cookies

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Session sentinel: when this cookie is present the stored www.tumblr.com
// cookies are stale and must not be restored.
const (
	SentinelName   = "sid"
	SentinelDomain = "www.tumblr.com"
)

// Record is one persisted cookie.
type Record struct {
	Name     string    `json:"name"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Value    string    `json:"value"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"httpOnly"`
}

// Filter returns the records that should be restored. If the sentinel
// cookie is present every record for the sentinel domain is dropped,
// including the sentinel itself. Otherwise the input is returned as is.
func Filter(records []Record) []Record {
	found := false
	for _, r := range records {
		if r.Name == SentinelName && r.Domain == SentinelDomain {
			found = true
			break
		}
	}
	if !found {
		return records
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Domain == SentinelDomain {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Jar is the in-memory working set of cookies.
type Jar struct {
	mu      sync.Mutex
	records []Record
}

// NewJar creates an empty Jar.
func NewJar() *Jar {
	return &Jar{}
}

// Set replaces the working set.
func (j *Jar) Set(records []Record) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append([]Record(nil), records...)
}

// Collect returns a copy of the working set for persistence.
func (j *Jar) Collect() []Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Record, len(j.records))
	copy(out, j.records)
	return out
}

// HTTPJar builds a cookie jar for HTTP clients from the working set.
func (j *Jar) HTTPJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	byDomain := make(map[string][]*http.Cookie)
	for _, r := range j.Collect() {
		domain := strings.TrimPrefix(r.Domain, ".")
		if domain == "" {
			continue
		}
		byDomain[domain] = append(byDomain[domain], &http.Cookie{
			Name:     r.Name,
			Value:    r.Value,
			Domain:   r.Domain,
			Path:     r.Path,
			Expires:  r.Expires,
			Secure:   r.Secure,
			HttpOnly: r.HTTPOnly,
		})
	}

	for domain, cs := range byDomain {
		u, err := url.Parse("https://" + domain + "/")
		if err != nil {
			continue
		}
		jar.SetCookies(u, cs)
	}
	return jar, nil
}
