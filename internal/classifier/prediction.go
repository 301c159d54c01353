package classifier

import "strings"

// Label is the canonical label vocabulary the policy understands
type Label string

const (
	LabelSuppress Label = "suppress"
	LabelForward  Label = "forward"
	LabelUnknown  Label = "unknown"
)

// labelAliases folds the spellings produced by different model versions onto canonical labels.
// Anything missing maps to LabelUnknown and never suppresses.
var labelAliases = map[string]Label{
	"suppress":                LabelSuppress,
	"suppressed":              LabelSuppress,
	"suppressed: jira exists": LabelSuppress,
	"forward":                 LabelForward,
	"forwarded":               LabelForward,
	"keep":                    LabelForward,
}

// CanonicalLabel maps a raw classifier label onto the canonical vocabulary
func CanonicalLabel(raw string) Label {
	if l, ok := labelAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return l
	}
	return LabelUnknown
}

// Prediction is the classifier output for one feature vector
type Prediction struct {
	PredictedLabel     string             `json:"predicted_label"`
	LabelProbabilities map[string]float64 `json:"label_probabilities"`
}

// Label returns the canonical form of the predicted label
func (p Prediction) Label() Label {
	return CanonicalLabel(p.PredictedLabel)
}

// Probability returns P(predicted label), or 0 when the model did not report it
func (p Prediction) Probability() float64 {
	if prob, ok := p.LabelProbabilities[p.PredictedLabel]; ok {
		return prob
	}
	for label, prob := range p.LabelProbabilities {
		if strings.EqualFold(strings.TrimSpace(label), strings.TrimSpace(p.PredictedLabel)) {
			return prob
		}
	}
	return 0
}

func (p Prediction) clone() Prediction {
	out := Prediction{PredictedLabel: p.PredictedLabel}
	if p.LabelProbabilities != nil {
		out.LabelProbabilities = make(map[string]float64, len(p.LabelProbabilities))
		for k, v := range p.LabelProbabilities {
			out.LabelProbabilities[k] = v
		}
	}
	return out
}
