package provider

// Wire shapes of the VirusTotal v3 URL and analysis endpoints. Counters are
// pointers so an absent field is distinguishable from zero.

type submitResponse struct {
	Data struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

type analysisResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status string         `json:"status"`
			Stats  *analysisStats `json:"stats"`
		} `json:"attributes"`
	} `json:"data"`
}

type analysisStats struct {
	Malicious  *uint `json:"malicious"`
	Suspicious *uint `json:"suspicious"`
	Harmless   *uint `json:"harmless"`
	Undetected *uint `json:"undetected"`
}

// StatusCompleted is the analysis status carrying final stats.
const StatusCompleted = "completed"
