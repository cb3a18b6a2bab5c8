package demodata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sigte/riskengine/internal/domain/scoring"
	"github.com/sigte/riskengine/pkg/logger"
)

// Verify runs a population analysis on the service at baseURL and checks
// that the risk distribution accounts for every analyzed student.
func Verify(ctx context.Context, baseURL string, timeout time.Duration) (scoring.PopulationSummary, error) {
	var summary scoring.PopulationSummary
	client := &http.Client{Timeout: timeout}
	url := strings.TrimRight(baseURL, "/") + "/api/analytics/student-risk"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return summary, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return summary, fmt.Errorf("population request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return summary, fmt.Errorf("%w: population endpoint returned %d", ErrVerification, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return summary, fmt.Errorf("decode population summary: %w", err)
	}
	if summary.Degraded {
		return summary, fmt.Errorf("%w: student listing unavailable", ErrVerification)
	}
	if got := summary.Distribution.Total(); got != summary.TotalAnalyzed {
		return summary, fmt.Errorf("%w: distribution sums to %d, analyzed %d", ErrVerification, got, summary.TotalAnalyzed)
	}

	logger.Get().Info(ctx, "population verified",
		logger.Int("analyzed", summary.TotalAnalyzed),
		logger.Int("skipped", summary.Skipped),
		logger.Float64("highRiskPercentage", summary.HighRiskPercentage),
	)
	return summary, nil
}
