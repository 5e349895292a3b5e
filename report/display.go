package report

import (
	"fmt"

	"github.com/pterm/pterm"
)

var (
	errorStyleBG = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	errorColorFG = pterm.FgRed
	warnStyleBG  = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	warnColorFG  = pterm.FgYellow
	infoColorFG  = pterm.FgLightGreen
)

// displayICE displays an internal compiler error message.
func displayICE(message string) {
	errorStyleBG.Print("internal compiler error")
	errorColorFG.Println(" " + message)
	fmt.Println("This error was not supposed to happen: it indicates a bug in the pipeline itself.")
}

// displayFatal displays a fatal error message.
func displayFatal(message string) {
	errorStyleBG.Print("fatal error")
	errorColorFG.Println(" " + message)
}

// displayDiagnostic displays an accumulated error or warning with its source
// position.
func displayDiagnostic(label string, f *Failure) {
	if label == "error" {
		errorStyleBG.Print(label)
		errorColorFG.Printf(" %s: %s\n", f.Pos, f.Message)
	} else {
		warnStyleBG.Print(label)
		warnColorFG.Printf(" %s: %s\n", f.Pos, f.Message)
	}
}

// displayTrace displays the optimization trace stream for a run.
func displayTrace(runID string, trace []string) {
	if len(trace) == 0 {
		return
	}

	infoColorFG.Printf("-- optimization trace (run %s) --\n", runID)
	for _, line := range trace {
		fmt.Println("  " + line)
	}
}
