package frontier

import (
	"math"
	"strings"

	"github.com/kljensen/snowball"
)

// Best-First scoring:
//
//	score = w_bm25 * BM25(url-text + anchor-text, query)
//	      + w_sim  * cos(anchor-text, query)
//	      + w_div  * diversity_bonus(host)
//	      + w_url  * url-signal(path-depth, keywords)
//
// Every input is stemmed with kljensen/snowball and combined with the
// fixed default weights below. No corpus-wide document-frequency
// statistics are tracked (the frontier sees one URL at a time, not a
// fixed corpus), so the BM25 term uses a fixed assumed average document
// length rather than a live corpus average.
type ScoreWeights struct {
	BM25      float64
	Sim       float64
	Diversity float64
	URLSignal float64
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{BM25: 0.5, Sim: 0.2, Diversity: 0.2, URLSignal: 0.1}
}

const (
	bm25K1            = 1.5
	bm25B             = 0.75
	assumedAvgDocLen  = 20.0
	diversityHalfLife = 1.0
)

func stemTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		stemmed, err := snowball.Stem(f, "english", true)
		if err != nil || stemmed == "" {
			continue
		}
		terms = append(terms, stemmed)
	}
	return terms
}

func termFreq(terms []string) map[string]int {
	freq := make(map[string]int, len(terms))
	for _, t := range terms {
		freq[t]++
	}
	return freq
}

// bm25Lite scores docTerms against queryTerms with BM25's term-saturation
// curve but a fixed assumed average document length in place of a live
// corpus statistic (see package doc).
func bm25Lite(docTerms, queryTerms []string) float64 {
	if len(docTerms) == 0 || len(queryTerms) == 0 {
		return 0
	}
	freq := termFreq(docTerms)
	docLen := float64(len(docTerms))
	var score float64
	for _, qt := range queryTerms {
		f := float64(freq[qt])
		if f == 0 {
			continue
		}
		numerator := f * (bm25K1 + 1)
		denominator := f + bm25K1*(1-bm25B+bm25B*docLen/assumedAvgDocLen)
		score += numerator / denominator
	}
	return score
}

// cosineSim computes cosine similarity between two stemmed term lists'
// term-frequency vectors.
func cosineSim(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	fa, fb := termFreq(a), termFreq(b)
	var dot, normA, normB float64
	for t, v := range fa {
		dot += float64(v) * float64(fb[t])
		normA += float64(v) * float64(v)
	}
	for _, v := range fb {
		normB += float64(v) * float64(v)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// diversityBonus decays as more URLs are already dequeued from host:
// the first URL from a fresh host scores highest.
func diversityBonus(alreadyDequeued int) float64 {
	return diversityHalfLife / float64(1+alreadyDequeued)
}

// urlSignal rewards shallow paths and query-keyword hits in the path.
func urlSignal(path string, depth int, queryTerms []string) float64 {
	depthPenalty := 1.0 / float64(1+depth)
	pathTerms := stemTerms(strings.ReplaceAll(path, "/", " "))
	pathFreq := termFreq(pathTerms)
	var keywordHits float64
	for _, qt := range queryTerms {
		if pathFreq[qt] > 0 {
			keywordHits++
		}
	}
	keywordScore := 0.0
	if len(queryTerms) > 0 {
		keywordScore = keywordHits / float64(len(queryTerms))
	}
	return 0.5*depthPenalty + 0.5*keywordScore
}

// score computes the full weighted Best-First score for a candidate URL.
func score(weights ScoreWeights, query, path, anchorText string, depth, hostDequeued int) float64 {
	queryTerms := stemTerms(query)
	if len(queryTerms) == 0 {
		return 0
	}
	docTerms := append(stemTerms(path), stemTerms(anchorText)...)
	anchorTerms := stemTerms(anchorText)

	return weights.BM25*bm25Lite(docTerms, queryTerms) +
		weights.Sim*cosineSim(anchorTerms, queryTerms) +
		weights.Diversity*diversityBonus(hostDequeued) +
		weights.URLSignal*urlSignal(path, depth, queryTerms)
}
