package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCacheLookups(t *testing.T) {
	hits := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit"))
	forced := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("forced"))

	RecordCacheHit()
	RecordCacheMiss(true)

	if got := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit")); got != hits+1 {
		t.Fatalf("hit counter = %v, want %v", got, hits+1)
	}
	if got := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("forced")); got != forced+1 {
		t.Fatalf("forced counter = %v, want %v", got, forced+1)
	}
}

func TestRecordManifest(t *testing.T) {
	RecordManifest("AwgSegmentation", 12, nil)
	if got := testutil.ToFloat64(manifestFiles.WithLabelValues("AwgSegmentation")); got != 12 {
		t.Fatalf("manifest gauge = %v, want 12", got)
	}

	errorsBefore := testutil.ToFloat64(manifestParsesTotal.WithLabelValues("error"))
	RecordManifest("Broken", 0, errors.New("boom"))
	if got := testutil.ToFloat64(manifestParsesTotal.WithLabelValues("error")); got != errorsBefore+1 {
		t.Fatalf("error counter = %v, want %v", got, errorsBefore+1)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordDownload(1024, 10*time.Millisecond)
	RecordHTTPRequest("GET", "/-/collections", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "encodehub_cache_bytes_downloaded_total") {
		t.Fatalf("metrics output missing download counter")
	}
	if !strings.Contains(string(body), "encodehub_http_requests_total") {
		t.Fatalf("metrics output missing request counter")
	}
}
