package analysis

import (
	"encoding/json"
	"strings"
)

// ResultPayload is the tool-specific result as returned by the backend,
// kept raw so each tool can decode its own shape.
type ResultPayload = json.RawMessage

// SeverityCounts value object for vulnerability-scan results.
// Unknown is a real bucket ("unknown" severity); anything outside the five
// buckets is dropped from the count entirely.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Unknown  int `json:"unknown"`
	Total    int `json:"total"`
}

// StyleViolation is one finding from the style/defect checker.
type StyleViolation struct {
	BeginLine   int    `json:"beginline"`
	BeginColumn int    `json:"begincolumn"`
	EndLine     int    `json:"endline"`
	EndColumn   int    `json:"endcolumn"`
	Description string `json:"description"`
	Rule        string `json:"rule"`
	RuleSet     string `json:"ruleset"`
	Priority    int    `json:"priority"`
}

// StyleFileResult groups violations per analyzed file.
type StyleFileResult struct {
	Filename   string           `json:"filename"`
	Violations []StyleViolation `json:"violations"`
}

// StyleReport is the style checker's payload shape.
type StyleReport struct {
	FormatVersion int               `json:"formatVersion"`
	Version       string            `json:"version"`
	Timestamp     string            `json:"timestamp"`
	Files         []StyleFileResult `json:"files"`
}

// TotalViolations sums violations across files. Zero is a valid completed
// result, distinct from a failed analysis.
func (r StyleReport) TotalViolations() int {
	total := 0
	for _, f := range r.Files {
		total += len(f.Violations)
	}
	return total
}

// MemorySafetyIssue is one finding from the memory-safety analyzer.
type MemorySafetyIssue struct {
	BugType   string `json:"bug_type"`
	Qualifier string `json:"qualifier"`
	Severity  string `json:"severity"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Procedure string `json:"procedure"`
	File      string `json:"file"`
}

// DecodeStyleReport parses a style-checker payload.
func DecodeStyleReport(raw ResultPayload) (StyleReport, error) {
	var rep StyleReport
	if err := json.Unmarshal(raw, &rep); err != nil {
		return StyleReport{}, err
	}
	return rep, nil
}

// DecodeMemorySafetyIssues parses a memory-safety payload.
func DecodeMemorySafetyIssues(raw ResultPayload) ([]MemorySafetyIssue, error) {
	var issues []MemorySafetyIssue
	if err := json.Unmarshal(raw, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// vulnerabilityReport mirrors the scanner's nested result shape just enough
// to count severities.
type vulnerabilityReport struct {
	Results []struct {
		Target          string `json:"Target"`
		Vulnerabilities []struct {
			Severity string `json:"Severity"`
		} `json:"Vulnerabilities"`
	} `json:"Results"`
}

// CountVulnerabilities buckets a vulnerability-scan payload by severity.
// Severities outside {critical, high, medium, low, unknown} are dropped.
func CountVulnerabilities(raw ResultPayload) (SeverityCounts, error) {
	var rep vulnerabilityReport
	if err := json.Unmarshal(raw, &rep); err != nil {
		return SeverityCounts{}, err
	}
	var c SeverityCounts
	for _, res := range rep.Results {
		for _, v := range res.Vulnerabilities {
			switch strings.ToLower(v.Severity) {
			case "critical":
				c.Critical++
			case "high":
				c.High++
			case "medium":
				c.Medium++
			case "low":
				c.Low++
			case "unknown":
				c.Unknown++
			default:
				continue
			}
			c.Total++
		}
	}
	return c, nil
}

// NormalizeResult unwraps a result payload that arrived as a JSON-encoded
// string into its structured form. Non-string payloads pass through.
func NormalizeResult(raw ResultPayload) (ResultPayload, error) {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, `"`) {
		return raw, nil
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, err
	}
	return ResultPayload(inner), nil
}
