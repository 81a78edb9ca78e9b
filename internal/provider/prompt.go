package provider

import (
	"fmt"
	"strings"
)

// Each vendor keeps its own system wording.
const (
	openAISystemPrompt    = "You are a grandmaster chess player. You only respond with a single move in UCI chess notation (e.g., e2e4)."
	anthropicSystemPrompt = "You are a grandmaster chess player. Respond only with a single move in UCI chess notation (e.g., e2e4)."
)

func userPrompt(fen string, legalMoves []string) string {
	return fmt.Sprintf("You are playing %s. The board position in FEN is: %s. The legal moves are: %s. Make your move.",
		sideToMove(fen), fen, strings.Join(legalMoves, ", "))
}

// sideToMove reads the active-color field of a FEN.
func sideToMove(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 1 && fields[1] == "b" {
		return "black"
	}
	return "white"
}
