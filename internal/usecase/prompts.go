package usecase

import "fmt"

// Prompt wording is part of the stored-data contract: the parsing rules in
// transforms.go are tuned to these exact templates.
const (
	englishCheckPrompt = "Is the following text primarily in English? This includes mixed languages like Hinglish. Answer only 'yes' or 'no':\n\n%s"
	translatePrompt    = "Translate this text to English. Return only the translation:\n\n%s"
	summarizePrompt    = "Generate a short, concise summary in English. Summarize in as few words as possible while preserving all important keywords, facts, and meaning exactly as in the original text. Return only the summary:\n\n%s"
	sentimentPrompt    = "Analyze the sentiment of this feedback. Respond with only one word: positive, negative, or neutral.\n\nFeedback: %s"
	keywordsPrompt     = "Extract the 5-10 most important keywords from this text. Each keyword should be a single word. Return them as a comma-separated list with no other text:\n\n%s"
)

func render(template, text string) string {
	return fmt.Sprintf(template, text)
}
