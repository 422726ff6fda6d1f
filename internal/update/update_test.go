package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func withReleaseServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	server := httptest.NewServer(handler)
	original := ReleasesURL
	ReleasesURL = server.URL
	t.Cleanup(func() {
		ReleasesURL = original
		server.Close()
	})
}

func TestCheckNewerAvailable(t *testing.T) {
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name":"v1.2.0","html_url":"https://github.com/shoplane/schat/releases/v1.2.0"}`))
	})

	result := Check(context.Background(), "1.0.0")
	if result == nil {
		t.Fatal("expected a result")
	}
	if !result.Newer {
		t.Error("1.2.0 should be newer than 1.0.0")
	}
	if result.LatestVersion != "1.2.0" {
		t.Errorf("LatestVersion = %q", result.LatestVersion)
	}
	if result.URL == "" {
		t.Error("URL missing")
	}
}

func TestCheckUpToDate(t *testing.T) {
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name":"v1.0.0"}`))
	})

	result := Check(context.Background(), "1.0.0")
	if result == nil {
		t.Fatal("expected a result")
	}
	if result.Newer {
		t.Error("same version should not report an update")
	}
}

func TestCheckSkipsDevBuilds(t *testing.T) {
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("dev builds must not hit the release feed")
	})

	if Check(context.Background(), "dev") != nil {
		t.Error("dev build should return nil")
	}
	if Check(context.Background(), "") != nil {
		t.Error("empty version should return nil")
	}
}

func TestCheckToleratesServerFailure(t *testing.T) {
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	})

	if Check(context.Background(), "1.0.0") != nil {
		t.Error("failed check should return nil, never an error surface")
	}
}

func TestCheckToleratesBadJSON(t *testing.T) {
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	})

	if Check(context.Background(), "1.0.0") != nil {
		t.Error("unparseable feed should return nil")
	}
}

func TestCheckInvalidVersionNotNewer(t *testing.T) {
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name":"not-a-version"}`))
	})

	result := Check(context.Background(), "1.0.0")
	if result == nil {
		t.Fatal("expected a result")
	}
	if result.Newer {
		t.Error("invalid latest version must not report an update")
	}
}
