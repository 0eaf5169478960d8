package chatgpt

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingMu    sync.Mutex
	encodingCache = make(map[string]*tiktoken.Tiktoken)
)

// CountTokens counts tokens for the given model's encoding. Unknown models
// fall back to cl100k_base; a broken tokenizer falls back to a word count
// so accounting never blocks a request.
func CountTokens(model, text string) int {
	if text == "" {
		return 0
	}
	encoding, err := encodingFor(model)
	if err != nil {
		return len(strings.Fields(text))
	}
	return len(encoding.Encode(text, nil, nil))
}

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	encodingMu.Lock()
	defer encodingMu.Unlock()
	if cached, ok := encodingCache[model]; ok {
		return cached, nil
	}
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	encodingCache[model] = encoding
	return encoding, nil
}
