package app

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/clambin/go-common/http/metrics"
	"github.com/clambin/go-common/http/roundtripper"
)

// newRequestMetrics returns the metrics for the HTTP calls made (tado) or served (api) by a subsystem.
func newRequestMetrics(subsystem string) metrics.RequestMetrics {
	return metrics.NewRequestMetrics(metrics.Options{
		Namespace: "thermostat",
		Subsystem: subsystem,
		LabelValues: func(request *http.Request, code int) (string, string, string) {
			return request.Method, requestPath(request.URL.Path), strconv.Itoa(code)
		},
	})
}

// requestPath removes home IDs and dates from the path, to limit the number of label values.
func requestPath(path string) string {
	const homePath = "/api/v2/homes"
	if strings.HasPrefix(path, homePath) {
		return homePath
	}
	if day, ok := strings.CutPrefix(path, "/api/runtime/"); ok && day != "today" {
		return "/api/runtime/{day}"
	}
	return path
}

func instrumentedTransport(rt http.RoundTripper, m metrics.RequestMetrics) http.RoundTripper {
	return roundtripper.New(
		roundtripper.WithRequestMetrics(m),
		roundtripper.WithRoundTripper(rt),
	)
}
