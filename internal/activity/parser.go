// Package activity parses workout shorthand lines into structured
// activities for the points engine. This is the structured input format
// the bot accepts, not a natural-language parser: free-form (voice) input
// is handled upstream and arrives here already normalized.
package activity

import (
	"regexp"
	"strconv"
	"strings"

	"fitpoints/internal/models"
)

// Supported line formats:
//
//	squat 3x10x60     sets x reps x weight_kg
//	pullup 3x12       sets x reps
//	pushup 25         reps only
//	run 5.2km         distance
//	plank 90s         duration in seconds
//	row 10min         duration in minutes
//
// A trailing "!" marks the entry as a personal record.
var (
	patternSetsReps = regexp.MustCompile(`^(.+?)\s+(\d+)[xх](\d+)(?:[xх](\d+(?:[.,]\d+)?))?$`)
	patternDistance = regexp.MustCompile(`^(.+?)\s+(\d+(?:[.,]\d+)?)\s*(?:km|км)$`)
	patternSeconds  = regexp.MustCompile(`^(.+?)\s+(\d+)\s*(?:s|sec|сек)$`)
	patternMinutes  = regexp.MustCompile(`^(.+?)\s+(\d+)\s*(?:m|min|мин)$`)
	patternReps     = regexp.MustCompile(`^(.+?)\s+(\d+)$`)
)

// ParseAll parses every non-empty line of text; lines that match no
// format are skipped
func ParseAll(text string) []models.Activity {
	var activities []models.Activity
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if act, ok := ParseLine(line); ok {
			activities = append(activities, act)
		}
	}
	return activities
}

// ParseLine parses a single workout shorthand line
func ParseLine(line string) (models.Activity, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return models.Activity{}, false
	}

	act := models.Activity{Sets: 1}
	if strings.HasSuffix(line, "!") {
		act.IsPersonalRecord = true
		line = strings.TrimSpace(strings.TrimSuffix(line, "!"))
	}

	if matches := patternSetsReps.FindStringSubmatch(line); matches != nil {
		act.ExerciseKey = normalizeKey(matches[1])
		act.Sets, _ = strconv.Atoi(matches[2])
		act.Reps, _ = strconv.Atoi(matches[3])
		if matches[4] != "" {
			act.WeightKg = parseDecimal(matches[4])
		}
		return act, act.ExerciseKey != ""
	}

	if matches := patternDistance.FindStringSubmatch(line); matches != nil {
		act.ExerciseKey = normalizeKey(matches[1])
		act.DistanceKm = parseDecimal(matches[2])
		return act, act.ExerciseKey != ""
	}

	if matches := patternSeconds.FindStringSubmatch(line); matches != nil {
		act.ExerciseKey = normalizeKey(matches[1])
		act.DurationSeconds, _ = strconv.Atoi(matches[2])
		return act, act.ExerciseKey != ""
	}

	if matches := patternMinutes.FindStringSubmatch(line); matches != nil {
		act.ExerciseKey = normalizeKey(matches[1])
		minutes, _ := strconv.Atoi(matches[2])
		act.DurationSeconds = minutes * 60
		return act, act.ExerciseKey != ""
	}

	if matches := patternReps.FindStringSubmatch(line); matches != nil {
		act.ExerciseKey = normalizeKey(matches[1])
		act.Reps, _ = strconv.Atoi(matches[2])
		return act, act.ExerciseKey != ""
	}

	return models.Activity{}, false
}

// normalizeKey turns a display name into a stable exercise key
func normalizeKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(key), "_")
}

func parseDecimal(s string) float64 {
	value, _ := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	return value
}
