package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/akmatori/alertsieve/internal/metrics"
)

// HTTPClient scores feature vectors against a JSON-over-HTTP model endpoint.
// Predictions are memoized per feature vector for the configured TTL.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	cache      *gocache.Cache
	logger     *slog.Logger
}

// NewHTTPClient constructs a client targeting endpoint. A zero cacheTTL disables memoization.
func NewHTTPClient(endpoint string, timeout, cacheTTL time.Duration, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "classifier"),
	}
	if cacheTTL > 0 {
		c.cache = gocache.New(cacheTTL, 2*cacheTTL)
	}
	return c
}

// predictResponse accepts both the plain map form and the BQML-style list form:
//
//	{"predicted_label": "suppress", "label_probabilities": {"suppress": 0.85}}
//	{"predicted_decision_reason": "suppressed: jira exists",
//	 "predicted_decision_reason_probs": [{"label": "...", "prob": 0.85}]}
type predictResponse struct {
	PredictedLabel       string          `json:"predicted_label"`
	PredictedReason      string          `json:"predicted_decision_reason"`
	LabelProbabilities   json.RawMessage `json:"label_probabilities"`
	PredictedLabelProbs  json.RawMessage `json:"predicted_label_probs"`
	PredictedReasonProbs json.RawMessage `json:"predicted_decision_reason_probs"`
}

type labelProb struct {
	Label string  `json:"label"`
	Prob  float64 `json:"prob"`
}

// Predict validates the features, consults the cache and calls the endpoint
func (c *HTTPClient) Predict(ctx context.Context, features FeatureVector) (*Prediction, error) {
	if c == nil || c.endpoint == "" {
		return nil, &ClassifierError{Op: "predict", Err: ErrClassifierDisabled}
	}
	if err := features.Validate(); err != nil {
		metrics.ObserveClassifierCall(metrics.OutcomeInvalid)
		return nil, &ClassifierError{Op: "validate", Err: err}
	}

	key := features.CacheKey()
	if c.cache != nil {
		if cached, found := c.cache.Get(key); found {
			metrics.ObserveClassifierCall(metrics.OutcomeCached)
			p := cached.(Prediction).clone()
			return &p, nil
		}
	}

	prediction, err := c.call(ctx, features)
	if err != nil {
		metrics.ObserveClassifierCall(metrics.OutcomeError)
		c.logger.Warn("classifier call failed", "host", features.Host, "error", err)
		return nil, &ClassifierError{Op: "predict", Err: err}
	}
	metrics.ObserveClassifierCall(metrics.OutcomeSuccess)

	if c.cache != nil {
		c.cache.SetDefault(key, prediction.clone())
	}
	return prediction, nil
}

func (c *HTTPClient) call(ctx context.Context, features FeatureVector) (*Prediction, error) {
	body, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.toPrediction()
}

func (r predictResponse) toPrediction() (*Prediction, error) {
	label := r.PredictedLabel
	if label == "" {
		label = r.PredictedReason
	}
	if label == "" {
		return nil, fmt.Errorf("response has no predicted label")
	}

	probs := map[string]float64{}
	for _, raw := range []json.RawMessage{r.LabelProbabilities, r.PredictedLabelProbs, r.PredictedReasonProbs} {
		parsed, err := parseProbabilities(raw)
		if err != nil {
			return nil, err
		}
		for k, v := range parsed {
			probs[k] = v
		}
	}

	return &Prediction{PredictedLabel: label, LabelProbabilities: probs}, nil
}

func parseProbabilities(raw json.RawMessage) (map[string]float64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '{':
		var m map[string]float64
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, fmt.Errorf("decode probabilities: %w", err)
		}
		return m, nil
	case '[':
		var list []labelProb
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode probabilities: %w", err)
		}
		m := make(map[string]float64, len(list))
		for _, lp := range list {
			m[lp.Label] = lp.Prob
		}
		return m, nil
	}
	return nil, fmt.Errorf("unexpected probabilities format")
}
