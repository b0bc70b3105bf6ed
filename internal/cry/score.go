package cry

import "strings"

// pickBest selects the most plausible audio reference. A single candidate
// is accepted without scoring; ties are broken by extraction order.
func pickBest(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	best := ""
	bestScore := -1
	for _, candidate := range candidates {
		if score := scoreCandidate(candidate); score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best
}

// scoreCandidate weighs filename keywords that suggest a pokemon cry.
func scoreCandidate(candidate string) int {
	lower := strings.ToLower(candidate)
	score := 0
	if strings.Contains(lower, "cri") {
		score += 4
	}
	if strings.Contains(lower, "cry") {
		score += 4
	}
	if strings.Contains(lower, "pokemon") {
		score += 2
	}
	if strings.Contains(lower, "voix") {
		score += 1
	}
	if strings.HasSuffix(lower, ".ogg") {
		score += 1
	}
	return score
}
