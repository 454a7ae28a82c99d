package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultReleasesURL is the GitHub API endpoint for the latest release.
	DefaultReleasesURL = "https://api.github.com/repos/doridoridoriand/latencybar/releases/latest"

	checkTimeout = 10 * time.Second
)

type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Release describes the newest published version.
type Release struct {
	Version string
	URL     string
	// Newer reports whether Version is ahead of the running build.
	Newer bool
}

// Checker queries a release endpoint for newer versions.
type Checker struct {
	URL    string
	Client *http.Client
}

// NewChecker returns a Checker for url. An empty url uses DefaultReleasesURL.
func NewChecker(url string) *Checker {
	if url == "" {
		url = DefaultReleasesURL
	}
	return &Checker{URL: url, Client: &http.Client{Timeout: checkTimeout}}
}

// Check fetches the latest release and compares it against current.
func (c *Checker) Check(ctx context.Context, current string) (Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return Release{}, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "latencybar/"+NormalizeVersion(current))

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: checkTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("release endpoint returned %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return Release{}, fmt.Errorf("decode latest release: %w", err)
	}
	if release.TagName == "" {
		return Release{}, fmt.Errorf("latest release has no tag")
	}

	latest := NormalizeVersion(release.TagName)
	return Release{
		Version: latest,
		URL:     release.HTMLURL,
		Newer:   IsNewer(current, latest),
	}, nil
}

// NormalizeVersion strips surrounding space and a leading "v".
func NormalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// IsNewer reports whether latest is ahead of current. Versions compare
// numerically per dot-separated component; missing components count as 0 and
// a non-numeric component stops the comparison. Dev builds never update.
func IsNewer(current, latest string) bool {
	current = NormalizeVersion(current)
	latest = NormalizeVersion(latest)
	if current == "" || current == "dev" {
		return false
	}
	return compareVersions(latest, current) > 0
}

func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		x, okx := component(as, i)
		y, oky := component(bs, i)
		if !okx || !oky {
			return 0
		}
		if x != y {
			if x > y {
				return 1
			}
			return -1
		}
	}
	return 0
}

// component parses the leading digits of parts[i], so "3-beta" reads as 3.
func component(parts []string, i int) (int, bool) {
	if i >= len(parts) {
		return 0, true
	}
	p := parts[i]
	end := 0
	for end < len(p) && p[end] >= '0' && p[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(p[:end])
	if err != nil {
		return 0, false
	}
	return v, true
}
