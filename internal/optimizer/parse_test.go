package optimizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optimization-service/internal/entity"
	"optimization-service/internal/optimizer"
)

func TestParseResult_StructuredJSON(t *testing.T) {
	res, info := optimizer.ParseResult(`{"deduplicated": 3, "merged": 1}`)

	assert.True(t, info.Structured)
	assert.Equal(t, float64(3), res.Deduplicated)
	assert.Equal(t, float64(1), res.Merged)
	assert.Zero(t, res.Enhanced)
	assert.Contains(t, info.Defaulted, "enhanced")
	assert.NotContains(t, info.Defaulted, "merged")
}

func TestParseResult_JSONEmbeddedInNoise(t *testing.T) {
	out := "INFO loading config\n{\n  \"memories_affected\": 12,\n  \"space_saved_mb\": \"1.5\",\n  \"duration_seconds\": 4.2\n}\nbye\n"
	res, info := optimizer.ParseResult(out)

	assert.True(t, info.Structured)
	assert.Equal(t, float64(12), res.MemoriesAffected)
	assert.Equal(t, 1.5, res.SpaceSavedMB)
	assert.Equal(t, 4.2, res.DurationSeconds)
}

func TestParseResult_FreeTextFallback(t *testing.T) {
	out := `Optimization finished
memories affected: 42
deduplicated 7 entries, merged: 3, enhanced: 5
errors: 0
space saved: 2.75 MB
duration: 12.5s`
	res, info := optimizer.ParseResult(out)

	assert.False(t, info.Structured)
	assert.True(t, info.Fallback())
	assert.Equal(t, float64(42), res.MemoriesAffected)
	assert.Equal(t, float64(7), res.Deduplicated)
	assert.Equal(t, float64(3), res.Merged)
	assert.Equal(t, float64(5), res.Enhanced)
	assert.Equal(t, float64(0), res.Errors)
	assert.Equal(t, 2.75, res.SpaceSavedMB)
	assert.Equal(t, 12.5, res.DurationSeconds)
	assert.Empty(t, info.Defaulted)
}

func TestParseResult_UnknownFormatDefaultsToZero(t *testing.T) {
	res, info := optimizer.ParseResult("nothing to see here")

	assert.Equal(t, entity.OptimizationResult{}, res)
	assert.True(t, info.Fallback())
	assert.Len(t, info.Defaulted, 7)
}

func TestParseResult_JSONWithoutKnownFieldsUsesOutputText(t *testing.T) {
	res, info := optimizer.ParseResult(`{"message":"ok","output":"merged 4 memories"}`)

	assert.True(t, info.Fallback())
	assert.Equal(t, float64(4), res.Merged)
}

func TestParseResult_Empty(t *testing.T) {
	res, _ := optimizer.ParseResult("")
	assert.Equal(t, entity.OptimizationResult{}, res)
}

func TestParseAnalysis_FreeText(t *testing.T) {
	out := "Found duplicate groups: 20\nlow quality memories: 10\noutdated: 5\n"
	a := optimizer.ParseAnalysis(out)

	require.Len(t, a.Issues, 3)
	assert.Equal(t, 20, a.Issues[0].Count)
	assert.Equal(t, entity.SeverityHigh, a.Issues[0].Severity)
	assert.Equal(t, 10, a.Issues[1].Count)
	assert.Equal(t, entity.SeverityMedium, a.Issues[1].Severity)
	assert.Equal(t, 5, a.Issues[2].Count)

	assert.Equal(t, 3, a.Summary.TotalIssues)
	assert.Equal(t, 35, a.Summary.TotalAffectedMemories)
	assert.Equal(t, 5.25, a.Summary.EstimatedSavingsMB)
	assert.Equal(t, 4, a.Summary.EstimatedDurationMinutes)

	require.Len(t, a.Recommendations, 3)
	assert.Equal(t, "process immediately", a.Recommendations[0].Action)
	assert.Equal(t, "optional", a.Recommendations[2].Action)
}

func TestParseAnalysis_StructuredJSON(t *testing.T) {
	a := optimizer.ParseAnalysis(`{"duplicates": 2, "outdated": 1}`)

	require.Len(t, a.Issues, 2)
	assert.Equal(t, "duplicate memories", a.Issues[0].Type)
	assert.Equal(t, "outdated memories", a.Issues[1].Type)
	assert.Equal(t, 3, a.Summary.TotalAffectedMemories)
}

func TestParseAnalysis_NoIssues(t *testing.T) {
	a := optimizer.ParseAnalysis("")

	assert.NotNil(t, a.Issues)
	assert.Empty(t, a.Issues)
	assert.Equal(t, entity.AnalysisSummary{}, a.Summary)
}
