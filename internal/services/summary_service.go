package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/akmatori/alertsieve/internal/executor"
	"github.com/akmatori/alertsieve/internal/policy"
	"github.com/akmatori/alertsieve/internal/utils"
)

// Summary is the noise-reduction report over a time window
type Summary struct {
	Since                 time.Time      `json:"since"`
	Until                 time.Time      `json:"until"`
	Total                 int            `json:"total"`
	Suppressed            int            `json:"suppressed"`
	Forwarded             int            `json:"forwarded"`
	Degraded              int            `json:"degraded"`
	NoiseReductionPercent float64        `json:"noise_reduction_percent"`
	ByRule                map[string]int `json:"by_rule"`
}

// Text renders the summary for chat
func (s Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alert summary since %s: %s alerts, %s suppressed, %s forwarded (noise reduction %s)",
		s.Since.UTC().Format("2006-01-02 15:04 MST"),
		utils.FormatNumber(s.Total),
		utils.FormatNumber(s.Suppressed),
		utils.FormatNumber(s.Forwarded),
		utils.FormatPercent(s.NoiseReductionPercent/100),
	)
	if s.Degraded > 0 {
		fmt.Fprintf(&b, ", %s degraded", utils.FormatNumber(s.Degraded))
	}

	rules := make([]string, 0, len(s.ByRule))
	for rule := range s.ByRule {
		rules = append(rules, rule)
	}
	sort.Strings(rules)
	for _, rule := range rules {
		fmt.Fprintf(&b, "\n  %s: %s", rule, utils.FormatNumber(s.ByRule[rule]))
	}
	return b.String()
}

// SummaryService aggregates audit entries into summaries
type SummaryService struct {
	reader executor.AuditReader
	now    func() time.Time
}

// NewSummaryService creates a summary service over an audit reader
func NewSummaryService(reader executor.AuditReader) *SummaryService {
	return &SummaryService{reader: reader, now: time.Now}
}

// Summary counts decisions recorded at or after since
func (s *SummaryService) Summary(ctx context.Context, since time.Time) (Summary, error) {
	entries, err := s.reader.ListSince(ctx, since)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load audit entries: %w", err)
	}
	return Summarize(entries, since, s.now().UTC()), nil
}

// SummaryForLast is Summary over the trailing window
func (s *SummaryService) SummaryForLast(ctx context.Context, window time.Duration) (Summary, error) {
	return s.Summary(ctx, s.now().UTC().Add(-window))
}

// Summarize aggregates entries
func Summarize(entries []executor.Entry, since, until time.Time) Summary {
	sum := Summary{Since: since.UTC(), Until: until, ByRule: map[string]int{}}
	for _, e := range entries {
		sum.Total++
		switch e.Action {
		case executor.ActionSuppressed:
			sum.Suppressed++
		case executor.ActionForwarded:
			sum.Forwarded++
		}
		if len(e.Degraded) > 0 {
			sum.Degraded++
		}
		sum.ByRule[policy.Rule(e.Reason)]++
	}
	if sum.Total > 0 {
		sum.NoiseReductionPercent = float64(sum.Suppressed) / float64(sum.Total) * 100
	}
	return sum
}
