package verdict

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Label 表示一次回答的结论。
type Label string

const (
	Unknown Label = ""
	Yes     Label = "yes"
	No      Label = "no"
	Maybe   Label = "maybe"
)

// Decision 给出结论以及得分。
type Decision struct {
	Verdict Label
	Score   int
}

// 平分时按此顺序取胜。
var labelOrder = []Label{Yes, No, Maybe}

var keywordBuckets = map[Label][]string{
	Yes: {
		"yes", "yeah", "yep", "yup", "sure", "certainly", "definitely", "absolutely", "affirmative",
		"of course", "indeed", "是", "是的", "对", "当然", "肯定", "没错", "可以",
	},
	No: {
		"no", "nope", "nah", "never", "negative", "not", "don't", "doesn't", "won't", "cannot",
		"不", "不是", "不会", "不行", "否", "没有", "绝不", "不对", "不可以", "不能", "当然不",
	},
	Maybe: {
		"maybe", "perhaps", "possibly", "unsure", "uncertain", "depends", "might", "unclear",
		"也许", "可能", "或许", "说不定", "不确定", "看情况",
	},
}

const (
	// 第一个词通常就是结论。
	leadingBoost = 2
	// 否定了肯定词的 No 关键词（如 "不是"、"不可以"）压过句中的肯定词。
	negationBoost = 1
)

type cjkKeyword struct {
	word     string
	label    Label
	negation bool
}

// cjkKeywords 按长度降序排列，扫描时取最长匹配并消耗该片段。
var cjkKeywords = buildCJKKeywords()

func buildCJKKeywords() []cjkKeyword {
	var out []cjkKeyword
	for _, label := range labelOrder {
		for _, word := range keywordBuckets[label] {
			if isASCII(word) {
				continue
			}
			out = append(out, cjkKeyword{
				word:     word,
				label:    label,
				negation: label == No && containsAffirmative(word),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].word) > len(out[j].word)
	})
	return out
}

func containsAffirmative(word string) bool {
	for _, yes := range keywordBuckets[Yes] {
		if !isASCII(yes) && yes != word && strings.Contains(word, yes) {
			return true
		}
	}
	return false
}

// Analyze 将一段自由文本归类为 yes / no / maybe。
func Analyze(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Verdict: Unknown}
	}

	tokens := tokenize(normalized)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		tokenSet[tok] = struct{}{}
	}
	padded := " " + strings.Join(tokens, " ") + " "

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if isASCII(word) && matches(word, padded, tokenSet) {
				scores[label] += 3
			}
		}
	}
	scoreCJK(normalized, scores)

	if len(tokens) > 0 {
		for _, label := range labelOrder {
			for _, word := range keywordBuckets[label] {
				if isASCII(word) && tokens[0] == word {
					scores[label] += leadingBoost
				}
			}
		}
	}

	best := Unknown
	bestScore := 0
	for _, label := range labelOrder {
		if scores[label] > bestScore {
			best = label
			bestScore = scores[label]
		}
	}

	return Decision{Verdict: best, Score: bestScore}
}

// scoreCJK 从左到右取最长关键词，匹配过的片段不再参与更短关键词的匹配，
// 所以 "不可以" 不会同时算作 "可以"。
func scoreCJK(text string, scores map[Label]int) {
	for i := 0; i < len(text); {
		matched := false
		for _, kw := range cjkKeywords {
			if strings.HasPrefix(text[i:], kw.word) {
				scores[kw.label] += 3
				if kw.negation {
					scores[kw.label] += negationBoost
				}
				i += len(kw.word)
				matched = true
				break
			}
		}
		if !matched {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
		}
	}
}

func matches(word, padded string, tokens map[string]struct{}) bool {
	if word == "" {
		return false
	}
	if strings.Contains(word, " ") {
		return strings.Contains(padded, " "+word+" ")
	}
	_, ok := tokens[word]
	return ok
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
