// Package hallucination scores transcripts for the statistical artifacts a
// speech-to-text engine emits over music, silence, or noise. Scoring is a
// pure, deterministic function of the text and segments.
package hallucination

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/monimoni12/naos/internal/transcribe"
)

// VetoThreshold is the additive score at or above which a transcript is
// rejected as hallucinated. The threshold and per-check point values are
// load-bearing for compatibility with previously scored transcripts.
const VetoThreshold = 40

// minScorableBytes skips scoring for texts too short to judge. Measured in
// bytes so that a handful of multi-byte emojis still reaches the emoji check.
const minScorableBytes = 5

// Verdict is the accumulated outcome of all checks, in check order.
type Verdict struct {
	Score   int
	Reasons []string
}

// IsHallucination reports whether the score crossed the veto threshold.
func (v Verdict) IsHallucination() bool {
	return v.Score >= VetoThreshold
}

// Reason flattens the triggered check descriptions into one string.
func (v Verdict) Reason() string {
	return strings.Join(v.Reasons, ", ")
}

// Detector applies the rule table using the configured word lists.
type Detector struct {
	Heuristics Heuristics
}

var (
	reMixedScript = regexp.MustCompile(`[가-힣]+[a-zA-Z]+|[a-zA-Z]+[가-힣]+`)
	reEnglishWord = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)
)

// Detect scores the transcript. Identical input always yields the identical
// score and reason sequence.
func (d *Detector) Detect(fullText string, segments []transcribe.Segment) Verdict {
	text := strings.TrimSpace(fullText)
	if len(text) < minScorableBytes {
		return Verdict{}
	}

	var v Verdict
	add := func(points int, reason string) {
		v.Score += points
		v.Reasons = append(v.Reasons, reason)
	}

	// 1. Emoji-dominant output.
	emojiCount, stripped := splitEmojis(text)
	if emojiCount >= 3 {
		if utf8.RuneCountInString(stripped) < 20 {
			add(60, fmt.Sprintf("emoji-only text: %d emojis", emojiCount))
		} else {
			add(30, fmt.Sprintf("emoji-heavy text: %d emojis", emojiCount))
		}
	}

	// 2. Foreign scripts mixed into the target language.
	if n := countForeignScript(text); n > 0 {
		add(40, fmt.Sprintf("foreign script characters: %d", n))
	}

	// 3. Tokens gluing Hangul and Latin letters together.
	if mixed := reMixedScript.FindAllString(text, -1); len(mixed) > 0 {
		add(35, fmt.Sprintf("mixed-script tokens: %s", strings.Join(head(mixed, 3), " ")))
	}

	// 4. Known boilerplate/caption phrases.
	if found := d.phraseHits(text); len(found) > 0 {
		add(25, fmt.Sprintf("boilerplate phrases: %s", strings.Join(head(found, 3), ", ")))
	}

	// 5. Dominant word repetition.
	words := strings.Fields(text)
	if len(words) >= 5 {
		word, repeats := dominantWord(words)
		if repeats >= 5 && float64(repeats)/float64(len(words)) >= 0.15 {
			add(40, fmt.Sprintf("word repetition: %q x%d", word, repeats))
		}
		if repeats >= 10 {
			add(30, fmt.Sprintf("severe repetition: x%d", repeats))
		}
	}

	// 6. Exact-duplicate segments.
	if len(segments) >= 5 {
		segText, repeats := dominantSegment(segments)
		if repeats >= 5 {
			add(50, fmt.Sprintf("segment repetition: %q x%d", segText, repeats))
		}
	}

	// 7. Runs of standalone single-character tokens.
	if n := countSingleCharTokens(text); n >= 10 {
		add(35, fmt.Sprintf("single-character run: %d tokens", n))
	}

	// 8. English outside the domain vocabulary.
	if len(segments) >= 5 {
		if offDomain := d.offDomainEnglish(text); len(offDomain) >= 3 {
			add(30, fmt.Sprintf("out-of-domain english: %s", strings.Join(head(offDomain, 5), " ")))
		}
	}

	return v
}

// phraseHits returns the configured phrases appearing in the text,
// case-insensitively, in list order.
func (d *Detector) phraseHits(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, p := range d.Heuristics.BoilerplatePhrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			found = append(found, p)
		}
	}
	return found
}

// offDomainEnglish returns English words of length >= 3 absent from the
// domain vocabulary.
func (d *Detector) offDomainEnglish(text string) []string {
	allowed := make(map[string]bool, len(d.Heuristics.CookingVocabulary))
	for _, w := range d.Heuristics.CookingVocabulary {
		allowed[strings.ToLower(w)] = true
	}
	var out []string
	for _, w := range reEnglishWord.FindAllString(text, -1) {
		if !allowed[strings.ToLower(w)] {
			out = append(out, w)
		}
	}
	return out
}

// isEmoji covers the pictographic blocks the engine emits over music.
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F9FF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x1F1E0 && r <= 0x1F1FF:
		return true
	}
	return false
}

// splitEmojis counts emoji runes and returns the trimmed remainder.
func splitEmojis(text string) (int, string) {
	var count int
	var b strings.Builder
	for _, r := range text {
		if isEmoji(r) {
			count++
			continue
		}
		b.WriteRune(r)
	}
	return count, strings.TrimSpace(b.String())
}

func stripEmojis(text string) string {
	_, rest := splitEmojis(text)
	return rest
}

// countForeignScript counts CJK Han, kana, Thai, and Cyrillic runes.
func countForeignScript(text string) int {
	var n int
	for _, r := range text {
		switch {
		case r >= 0x4E00 && r <= 0x9FFF, // Han
			r >= 0x3040 && r <= 0x30FF, // hiragana + katakana
			r >= 0x0E00 && r <= 0x0E7F, // Thai
			r >= 0x0400 && r <= 0x04FF: // Cyrillic
			n++
		}
	}
	return n
}

// dominantWord returns the most repeated word after emoji stripping. Ties
// resolve to the earliest-seen word so the verdict stays deterministic.
func dominantWord(words []string) (string, int) {
	counts := make(map[string]int, len(words))
	var best string
	var bestN int
	for _, w := range words {
		clean := strings.TrimSpace(stripEmojis(w))
		if clean == "" {
			continue
		}
		counts[clean]++
		if counts[clean] > bestN {
			best, bestN = clean, counts[clean]
		}
	}
	return best, bestN
}

// dominantSegment returns the most repeated non-empty segment text.
func dominantSegment(segments []transcribe.Segment) (string, int) {
	counts := make(map[string]int, len(segments))
	var best string
	var bestN int
	for _, s := range segments {
		t := strings.TrimSpace(s.Text)
		if t == "" {
			continue
		}
		counts[t]++
		if counts[t] > bestN {
			best, bestN = t, counts[t]
		}
	}
	return best, bestN
}

// countSingleCharTokens counts standalone tokens that are a lone ASCII digit,
// ASCII letter, or Hangul jamo.
func countSingleCharTokens(text string) int {
	var n int
	for _, tok := range strings.FieldsFunc(text, isTokenBoundary) {
		r, size := utf8.DecodeRuneInString(tok)
		if size == len(tok) && isSingleCharRune(r) {
			n++
		}
	}
	return n
}

func isTokenBoundary(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return false
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return false
	case r >= 0x3131 && r <= 0x3163: // Hangul jamo
		return false
	case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllables
		return false
	}
	return true
}

func isSingleCharRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r >= 0x3131 && r <= 0x3163:
		return true
	}
	return false
}

func head(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
