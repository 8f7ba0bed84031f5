package decision

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<item><title>Bitcoin &amp; ETFs</title><description>&lt;p&gt;Inflows continue.&lt;/p&gt;</description></item>
<item><title>Ethereum upgrade</title><description>Fees drop.</description></item>
</channel></rss>`

func newTestNews(t *testing.T, handler http.HandlerFunc, maxChars int) *NewsFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewNewsFetcher(NewsConfig{FeedURL: srv.URL, Timeout: 5 * time.Second, MaxChars: maxChars}, testLogger())
}

func TestNewsFetch(t *testing.T) {
	t.Parallel()

	n := newTestNews(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sampleFeed)
	}, 4000)

	out := n.Fetch(context.Background())
	if !strings.Contains(out, "Bitcoin & ETFs: Inflows continue.") {
		t.Fatalf("out = %q", out)
	}
	if strings.Contains(out, "<p>") {
		t.Fatal("HTML tags must be stripped")
	}
}

func TestNewsFetchCapped(t *testing.T) {
	t.Parallel()

	n := newTestNews(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sampleFeed)
	}, 40)

	out := n.Fetch(context.Background())
	if len(out) > 40 {
		t.Fatalf("len = %d, want <= 40", len(out))
	}
	if out == newsFallback {
		t.Fatal("expected at least one headline under the cap")
	}
}

func TestNewsFetchFailureFallsBack(t *testing.T) {
	t.Parallel()

	n := newTestNews(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}, 4000)

	if out := n.Fetch(context.Background()); out != newsFallback {
		t.Fatalf("out = %q, want fallback", out)
	}
}
