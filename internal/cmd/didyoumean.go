package cmd

import "strings"

// maxSuggestDistance is the largest edit distance still worth suggesting.
const maxSuggestDistance = 3

// editDistance computes the Levenshtein distance between two strings
// with a two-row dynamic programming table.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1]
			if a[i-1] != b[j-1] {
				sub++
			}
			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}
			cur[j] = best
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// closest returns the candidate nearest to input within
// maxSuggestDistance, comparing the normalized forms. Empty when
// nothing is close enough.
func closest(input string, candidates []string, normalize func(string) string) string {
	input = strings.ToLower(normalize(input))
	best := ""
	bestDist := maxSuggestDistance + 1
	for _, candidate := range candidates {
		d := editDistance(input, strings.ToLower(normalize(candidate)))
		if d < bestDist {
			bestDist = d
			best = candidate
		}
	}
	return best
}

// suggestCommand finds the closest command name to the unknown input.
func suggestCommand(unknown string, commands []string) string {
	return closest(unknown, commands, func(s string) string { return s })
}

// suggestFlag finds the closest flag name to the unknown input. Dashes
// are ignored for comparison but the match keeps its original prefix.
func suggestFlag(unknown string, flagNames []string) string {
	if strings.TrimLeft(unknown, "-") == "" {
		return ""
	}
	return closest(unknown, flagNames, func(s string) string {
		return strings.TrimLeft(s, "-")
	})
}
