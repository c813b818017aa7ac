package llm

import "strings"

// CharacterBasedTokenEstimator approximates tokens by character count.
// English prose averages roughly four characters per token across the
// major vendor tokenizers, which is close enough for budget checks.
type CharacterBasedTokenEstimator struct {
	charactersPerToken float64
}

// NewCharacterBasedTokenEstimator builds an estimator; a non-positive
// ratio selects the default of four characters per token.
func NewCharacterBasedTokenEstimator(charactersPerToken float64) *CharacterBasedTokenEstimator {
	if charactersPerToken <= 0 {
		charactersPerToken = 4.0
	}
	return &CharacterBasedTokenEstimator{charactersPerToken: charactersPerToken}
}

func (e *CharacterBasedTokenEstimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	estimate := int(float64(len(text)) / e.charactersPerToken)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

// WordBasedTokenEstimator approximates tokens by word count. Subword
// tokenizers split long words, so each word counts for slightly more
// than one token.
type WordBasedTokenEstimator struct {
	tokensPerWord float64
}

// NewWordBasedTokenEstimator builds an estimator; a non-positive ratio
// selects the default of 1.33 tokens per word.
func NewWordBasedTokenEstimator(tokensPerWord float64) *WordBasedTokenEstimator {
	if tokensPerWord <= 0 {
		tokensPerWord = 1.33
	}
	return &WordBasedTokenEstimator{tokensPerWord: tokensPerWord}
}

func (e *WordBasedTokenEstimator) EstimateTokens(text string) int {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	estimate := int(float64(len(words)) * e.tokensPerWord)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}
