package provider

import (
	"regexp"
	"strings"

	"github.com/park285/cheese-llm-chess/internal/board"
)

var (
	uciToken   = regexp.MustCompile(`\b([a-h][1-8][a-h][1-8][qrbn]?)\b`)
	formatting = strings.NewReplacer("`", " ", "*", " ", "_", " ", "\"", " ", "'", " ", "=", "")
)

// ExtractMove returns the first UCI-shaped token in a model reply. Legality is not checked.
func ExtractMove(reply string) (board.Move, bool) {
	text := strings.ToLower(formatting.Replace(reply))
	match := uciToken.FindStringSubmatch(text)
	if match == nil {
		return board.Move{}, false
	}
	m, err := board.ParseMove(match[1])
	if err != nil {
		return board.Move{}, false
	}
	return m, true
}
