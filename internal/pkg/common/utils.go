package common

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID generates a UUID string.
func GenerateUUID() string {
	return uuid.New().String()
}

var (
	slugPattern     = regexp.MustCompile(`[^a-z0-9]+`)
	firstIntPattern = regexp.MustCompile(`\d+`)
)

// Slugify reduces a title to a lowercase alphanumeric slug.
func Slugify(title string) string {
	return slugPattern.ReplaceAllString(strings.ToLower(title), "")
}

// FirstInt extracts the first integer substring from a value like
// "4 servings" or "30 min". Returns fallback if none is found.
func FirstInt(value string, fallback int) int {
	match := firstIntPattern.FindString(value)
	if match == "" {
		return fallback
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return fallback
	}
	return n
}
