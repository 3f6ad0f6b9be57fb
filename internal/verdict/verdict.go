// Package verdict maps analysis counts to a Verdict.
package verdict

import "github.com/raysh454/repscan/internal/model"

// Classify returns Malicious if any engine flagged the URL malicious,
// otherwise Suspicious if any flagged it suspicious, otherwise Good.
// Harmless and undetected counts never affect the result.
func Classify(report model.AnalysisReport) model.Verdict {
	switch {
	case report.Malicious > 0:
		return model.VerdictMalicious
	case report.Suspicious > 0:
		return model.VerdictSuspicious
	default:
		return model.VerdictGood
	}
}

// ClassifyResult classifies a poll outcome. A nil report or a non-nil error
// yields Unknown.
func ClassifyResult(report *model.AnalysisReport, err error) model.Verdict {
	if err != nil || report == nil {
		return model.VerdictUnknown
	}
	return Classify(*report)
}
