package secure

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"hermannm.dev/wrap"
)

// TokenBlocklist holds revoked tokens.  It is safe for concurrent use.
type TokenBlocklist struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

func NewTokenBlocklist() *TokenBlocklist {
	return &TokenBlocklist{tokens: make(map[string]struct{})}
}

func (tb *TokenBlocklist) addToken(token string) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens[token] = struct{}{}
}

func (tb *TokenBlocklist) removeToken(token string) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	delete(tb.tokens, token)
}

func (tb *TokenBlocklist) IsBlocked(token string) bool {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	_, blocked := tb.tokens[token]
	return blocked
}

// LoadTokensFromSlice replaces the blocklist contents.
func (tb *TokenBlocklist) LoadTokensFromSlice(tokens []string) {
	fresh := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		fresh[token] = struct{}{}
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = fresh
}

func (tb *TokenBlocklist) Count() int {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	return len(tb.tokens)
}

// LoadTokensFromFile replaces the blocklist with the tokens in path, one
// per line.  Blank lines and lines starting with # are skipped.
func (tb *TokenBlocklist) LoadTokensFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return wrap.Errorf(err, "failed to open token blocklist %s", path)
	}
	defer file.Close()

	var tokens []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return wrap.Errorf(err, "failed to read token blocklist %s", path)
	}

	tb.LoadTokensFromSlice(tokens)
	return nil
}
