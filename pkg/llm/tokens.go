package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const tokenEncoding = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// CountTokens estimates the prompt size of text. The count uses cl100k_base for
// every provider; it is a budget, not a billing figure. Falls back to four
// bytes per token when the encoding cannot be loaded.
func CountTokens(text string) int {
	encOnce.Do(func() {
		enc, _ = tiktoken.GetEncoding(tokenEncoding)
	})
	if enc == nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
