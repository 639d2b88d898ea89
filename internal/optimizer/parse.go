package optimizer

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"

	"optimization-service/internal/entity"
)

// ParseInfo describes how an output was understood. Fallback parsing is not
// an error; Defaulted lists the fields that were not found and set to zero.
type ParseInfo struct {
	Structured bool
	Defaulted  []string
}

func (p ParseInfo) Fallback() bool { return !p.Structured }

type numericField struct {
	name    string
	keys    []string
	pattern *regexp.Regexp
	set     func(*entity.OptimizationResult, float64)
}

var resultFields = []numericField{
	{
		name:    "memories_affected",
		keys:    []string{"memories_affected", "items_affected", "affected"},
		pattern: regexp.MustCompile(`(?i)memories.*?affected.*?(\d+(?:\.\d+)?)`),
		set:     func(r *entity.OptimizationResult, v float64) { r.MemoriesAffected = v },
	},
	{
		name:    "deduplicated",
		keys:    []string{"deduplicated"},
		pattern: regexp.MustCompile(`(?i)deduplicated.*?(\d+(?:\.\d+)?)`),
		set:     func(r *entity.OptimizationResult, v float64) { r.Deduplicated = v },
	},
	{
		name:    "merged",
		keys:    []string{"merged"},
		pattern: regexp.MustCompile(`(?i)merged.*?(\d+(?:\.\d+)?)`),
		set:     func(r *entity.OptimizationResult, v float64) { r.Merged = v },
	},
	{
		name:    "enhanced",
		keys:    []string{"enhanced"},
		pattern: regexp.MustCompile(`(?i)enhanced.*?(\d+(?:\.\d+)?)`),
		set:     func(r *entity.OptimizationResult, v float64) { r.Enhanced = v },
	},
	{
		name:    "errors",
		keys:    []string{"errors", "error_count"},
		pattern: regexp.MustCompile(`(?i)errors.*?(\d+(?:\.\d+)?)`),
		set:     func(r *entity.OptimizationResult, v float64) { r.Errors = v },
	},
	{
		name:    "space_saved_mb",
		keys:    []string{"space_saved_mb", "space_saved"},
		pattern: regexp.MustCompile(`(?i)space.*?saved.*?(\d+(?:\.\d+)?)`),
		set:     func(r *entity.OptimizationResult, v float64) { r.SpaceSavedMB = v },
	},
	{
		name:    "duration_seconds",
		keys:    []string{"duration_seconds", "duration"},
		pattern: regexp.MustCompile(`(?i)duration.*?(\d+(?:\.\d+)?)`),
		set:     func(r *entity.OptimizationResult, v float64) { r.DurationSeconds = v },
	},
}

// greedy on purpose: first '{' to last '}'
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// extractObject finds the JSON object embedded in the output, if any.
func extractObject(raw string) (map[string]json.RawMessage, bool) {
	m := jsonObject.FindString(raw)
	if m == "" {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(m), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func lookupNumber(obj map[string]json.RawMessage, keys []string) (float64, bool) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			return f, true
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func matchNumber(text string, re *regexp.Regexp) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// textOf returns the free text to scan when the output carried no usable
// structured fields. A JSON envelope with an "output" string is unwrapped.
func textOf(raw string, obj map[string]json.RawMessage) string {
	if obj != nil {
		if v, ok := obj["output"]; ok {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				return s
			}
		}
	}
	return raw
}

// ParseResult reads an optimizer output: structured JSON first, then lenient
// pattern extraction. Fields found by neither default to zero.
func ParseResult(raw string) (entity.OptimizationResult, ParseInfo) {
	var (
		res  entity.OptimizationResult
		info ParseInfo
	)

	obj, ok := extractObject(raw)
	if ok {
		found := 0
		var missing []string
		for _, f := range resultFields {
			if v, ok := lookupNumber(obj, f.keys); ok {
				f.set(&res, v)
				found++
			} else {
				missing = append(missing, f.name)
			}
		}
		if found > 0 {
			info.Structured = true
			info.Defaulted = missing
			return res, info
		}
	}

	text := textOf(raw, obj)
	for _, f := range resultFields {
		if v, ok := matchNumber(text, f.pattern); ok {
			f.set(&res, v)
		} else {
			info.Defaulted = append(info.Defaulted, f.name)
		}
	}
	return res, info
}

type issueKind struct {
	kind        string
	keys        []string
	pattern     *regexp.Regexp
	severity    entity.Severity
	description string
}

var issueKinds = []issueKind{
	{
		kind:        "duplicate memories",
		keys:        []string{"duplicates", "duplicate", "duplicate_count"},
		pattern:     regexp.MustCompile(`(?i)duplicate.*?(\d+)`),
		severity:    entity.SeverityHigh,
		description: "memories whose semantic similarity exceeds the threshold",
	},
	{
		kind:        "low quality memories",
		keys:        []string{"low_quality", "low_quality_count"},
		pattern:     regexp.MustCompile(`(?i)low.*?quality.*?(\d+)`),
		severity:    entity.SeverityMedium,
		description: "memories with a low importance score",
	},
	{
		kind:        "outdated memories",
		keys:        []string{"outdated", "outdated_count"},
		pattern:     regexp.MustCompile(`(?i)outdated.*?(\d+)`),
		severity:    entity.SeverityLow,
		description: "memories not updated for a long time",
	},
}

var actions = map[entity.Severity]string{
	entity.SeverityHigh:   "process immediately",
	entity.SeverityMedium: "processing recommended",
	entity.SeverityLow:    "optional",
}

// ParseAnalysis reads a dry-run output into the issues it anticipates.
func ParseAnalysis(raw string) entity.Analysis {
	a := entity.Analysis{
		Issues:          []entity.Issue{},
		Recommendations: []entity.Recommendation{},
	}

	obj, _ := extractObject(raw)
	counts := make([]int, len(issueKinds))
	found := make([]bool, len(issueKinds))
	structured := false
	if obj != nil {
		for i, k := range issueKinds {
			if v, ok := lookupNumber(obj, k.keys); ok {
				counts[i], found[i] = int(v), true
				structured = true
			}
		}
	}
	if !structured {
		text := textOf(raw, obj)
		for i, k := range issueKinds {
			if v, ok := matchNumber(text, k.pattern); ok {
				counts[i], found[i] = int(v), true
			}
		}
	}

	total := 0
	for i, k := range issueKinds {
		if !found[i] {
			continue
		}
		a.Issues = append(a.Issues, entity.Issue{
			Type:        k.kind,
			Count:       counts[i],
			Severity:    k.severity,
			Description: k.description,
		})
		a.Recommendations = append(a.Recommendations, entity.Recommendation{
			Type:     k.kind,
			Action:   actions[k.severity],
			Priority: k.severity,
		})
		total += counts[i]
	}

	a.Summary = entity.AnalysisSummary{
		TotalIssues:              len(a.Issues),
		TotalAffectedMemories:    total,
		EstimatedSavingsMB:       math.Round(float64(total)*0.15*100) / 100,
		EstimatedDurationMinutes: int(math.Ceil(float64(total) / 10)),
	}
	return a
}
