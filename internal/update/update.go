// Package update performs a best-effort check for newer schat releases.
package update

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// DefaultReleasesURL is the release feed consulted by Check.
const DefaultReleasesURL = "https://api.github.com/repos/shoplane/schat/releases/latest"

const checkTimeout = 5 * time.Second

// ReleasesURL can be overridden in tests.
var ReleasesURL = DefaultReleasesURL

type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Result describes the outcome of a release check.
type Result struct {
	CurrentVersion string
	LatestVersion  string
	URL            string
	Newer          bool
}

// Check looks up the latest published release and compares it against
// currentVersion. It returns nil on any failure, and for dev builds:
// the check must never get in the user's way.
func Check(ctx context.Context, currentVersion string) *Result {
	if currentVersion == "dev" || currentVersion == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	rel, err := fetchLatest(ctx)
	if err != nil {
		return nil
	}

	result := &Result{
		CurrentVersion: currentVersion,
		LatestVersion:  strings.TrimPrefix(rel.TagName, "v"),
		URL:            rel.HTMLURL,
	}
	current := ensureV(currentVersion)
	latest := ensureV(rel.TagName)
	if semver.IsValid(current) && semver.IsValid(latest) {
		result.Newer = semver.Compare(latest, current) > 0
	}
	return result
}

func fetchLatest(ctx context.Context) (*release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ReleasesURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{code: resp.StatusCode}
	}
	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

type httpStatusError struct{ code int }

func (e *httpStatusError) Error() string {
	return http.StatusText(e.code)
}

func ensureV(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
