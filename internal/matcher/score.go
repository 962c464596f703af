package matcher

import "github.com/verte-zerg/cueline/internal/model"

// Score is the final classification of one utterance.
type Score struct {
	IsCorrect       bool
	AccuracyPercent float64
	MissingWords    []string
	WrongWords      []string
	Results         []model.WordResult
}

// WordByWord classifies every expected word of a completed utterance using
// fuzzy comparison.
func WordByWord(expected, spoken string, biasTokens []string) []model.WordResult {
	exp := tokenize(expected)
	heard := heardTokens(exp, spoken)
	return classify(exp, heard, newComparer(false, biasTokens))
}

// ScoreAccuracy scores spoken against expected. Strict mode only accepts
// words equal after normalization; fuzzy mode tolerates small edits and
// sound-alike words.
func ScoreAccuracy(expected, spoken string, strict bool, biasTokens []string) Score {
	exp := tokenize(expected)
	heard := heardTokens(exp, spoken)
	results := classify(exp, heard, newComparer(strict, biasTokens))

	score := Score{Results: results}
	if len(heard) == 0 {
		for _, r := range results {
			score.MissingWords = append(score.MissingWords, r.Word)
		}
		return score
	}
	if len(exp) == 0 {
		score.IsCorrect = true
		score.AccuracyPercent = 100
		return score
	}

	correct := 0
	for _, r := range results {
		switch r.Verdict {
		case model.VerdictCorrect:
			correct++
		case model.VerdictWrong:
			score.WrongWords = append(score.WrongWords, r.Word)
		case model.VerdictMissing:
			score.MissingWords = append(score.MissingWords, r.Word)
		}
	}
	score.AccuracyPercent = float64(correct) / float64(len(exp)) * 100
	score.IsCorrect = correct == len(exp)
	return score
}

// classify aligns the two token sequences by longest common subsequence.
// Unmatched expected words facing unmatched heard words in the same gap are
// wrong; any left over are missing.
func classify(exp, heard []token, cmp comparer) []model.WordResult {
	results := make([]model.WordResult, len(exp))
	for i, t := range exp {
		results[i] = model.WordResult{Word: t.display, Verdict: model.VerdictMissing}
	}
	if len(exp) == 0 || len(heard) == 0 {
		return results
	}

	n, m := len(exp), len(heard)
	matches := make([][]bool, n)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := 0; i < n; i++ {
		matches[i] = make([]bool, m)
		for j := 0; j < m; j++ {
			matches[i][j] = cmp.match(exp[i].norm, heard[j].norm)
		}
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			best := dp[i+1][j]
			if dp[i][j+1] > best {
				best = dp[i][j+1]
			}
			if matches[i][j] && dp[i+1][j+1]+1 > best {
				best = dp[i+1][j+1] + 1
			}
			dp[i][j] = best
		}
	}

	var gapExp []int
	gapHeard := 0
	flush := func() {
		k := 0
		for _, idx := range gapExp {
			// A scripted hesitation may go unsaid.
			if isFiller(exp[idx].norm) {
				results[idx].Verdict = model.VerdictCorrect
				continue
			}
			if k < gapHeard {
				results[idx].Verdict = model.VerdictWrong
			}
			k++
		}
		gapExp = gapExp[:0]
		gapHeard = 0
	}

	i, j := 0, 0
	for i < n && j < m {
		switch {
		case matches[i][j] && dp[i][j] == dp[i+1][j+1]+1:
			flush()
			results[i].Verdict = model.VerdictCorrect
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			gapExp = append(gapExp, i)
			i++
		default:
			gapHeard++
			j++
		}
	}
	for ; i < n; i++ {
		gapExp = append(gapExp, i)
	}
	gapHeard += m - j
	flush()
	return results
}
