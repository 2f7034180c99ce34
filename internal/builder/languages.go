package builder

import (
	"crypto/sha256"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/python"
)

// grammars maps builder languages to tree-sitter grammars.
// Lazily initialized on first call via sync.Once.
var (
	grammars     map[string]*sitter.Language
	grammarsOnce sync.Once
)

// Grammar returns the tree-sitter grammar for a builder language.
func Grammar(lang string) (*sitter.Language, bool) {
	grammarsOnce.Do(func() {
		grammars = map[string]*sitter.Language{
			"python": python.GetLanguage(),
			"html":   html.GetLanguage(),
			"css":    css.GetLanguage(),
		}
	})
	l, ok := grammars[lang]
	return l, ok
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}
