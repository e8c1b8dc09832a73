// Package router classifies inbound text into commands and advances the
// per-sender conversational state machine.
package router

import "strings"

// Command is the closed set of recognized commands. Keeping the set closed
// (instead of open-ended string branching) makes dispatch exhaustiveness
// checkable.
type Command int

const (
	CmdNone Command = iota // no keyword matched
	CmdAdd
	CmdReport
	CmdExport
	CmdHelp
	CmdCancel
	CmdStop
	CmdStart
)

// vocabulary maps keywords and their aliases to commands. Aliases follow the
// original deployment's Spanish/English mix.
var vocabulary = map[string]Command{
	"add":      CmdAdd,
	"gasto":    CmdAdd,
	"report":   CmdReport,
	"resumen":  CmdReport,
	"summary":  CmdReport,
	"export":   CmdExport,
	"help":     CmdHelp,
	"ayuda":    CmdHelp,
	"tutorial": CmdHelp,
	"cancel":   CmdCancel,
	"cancelar": CmdCancel,
	"stop":     CmdStop,
	"start":    CmdStart,
}

// Classify matches the first token of body against the vocabulary,
// case-insensitively. Exact match wins; otherwise a token that is the
// unambiguous prefix of exactly one keyword matches that keyword. The
// remainder of the body is returned for inline arguments.
func Classify(body string) (Command, string) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return CmdNone, ""
	}

	token := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(body), fields[0]))

	if cmd, ok := vocabulary[token]; ok {
		return cmd, rest
	}

	var match Command
	matches := 0
	for keyword, cmd := range vocabulary {
		if strings.HasPrefix(keyword, token) {
			// Two aliases of the same command still count as unambiguous.
			if matches == 0 || cmd == match {
				match = cmd
				matches++
				continue
			}
			return CmdNone, ""
		}
	}
	if matches > 0 {
		return match, rest
	}
	return CmdNone, ""
}

// affirmatives and negatives accepted at the confirmation step.
var (
	affirmatives = map[string]bool{
		"yes": true, "y": true, "sí": true, "si": true,
		"ok": true, "confirmar": true, "confirm": true,
	}
	negatives = map[string]bool{"no": true, "n": true}
)

func isAffirmative(body string) bool {
	return affirmatives[strings.ToLower(strings.TrimSpace(body))]
}

func isNegative(body string) bool {
	return negatives[strings.ToLower(strings.TrimSpace(body))]
}
