package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sunbk201/xlink/internal/rewrite"
	"github.com/sunbk201/xlink/internal/rule"
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleReason  = map[rewrite.Reason]lipgloss.Style{
		rewrite.ReasonRewritten:   styleSuccess,
		rewrite.ReasonUnchanged:   styleDim,
		rewrite.ReasonOutOfScope:  styleDim,
		rewrite.ReasonUnparseable: styleWarn,
		rewrite.ReasonRecovered:   styleError,
	}
)

func renderReason(r rewrite.Reason) string {
	if s, ok := styleReason[r]; ok {
		return s.Render("[" + string(r) + "]")
	}
	return "[" + string(r) + "]"
}

func renderOnOff(enabled bool) string {
	if enabled {
		return styleSuccess.Render("on ")
	}
	return styleDim.Render("off")
}

func renderOutcome(w io.Writer, o rewrite.Outcome) {
	fmt.Fprintf(w, "%s %s\n", renderReason(o.Reason), styleTitle.Render(o.Mode.String()))
	fmt.Fprintf(w, "  %s %s\n", styleDim.Render("in: "), o.Input)
	fmt.Fprintf(w, "  %s %s\n", styleDim.Render("out:"), o.Output)
	for _, st := range o.Steps {
		renderStep(w, st)
	}
}

func renderStep(w io.Writer, st rule.Step) {
	label := fmt.Sprintf("#%d %s", st.Index+1, st.Name)
	switch {
	case st.Disabled:
		fmt.Fprintf(w, "    %s %s\n", styleDim.Render("skip"), styleDim.Render(label))
	case st.Error != "":
		fmt.Fprintf(w, "    %s %s %s\n", styleError.Render("fail"), label, styleError.Render(st.Error))
	case st.Input == st.Output:
		fmt.Fprintf(w, "    %s %s %s\n", styleDim.Render("miss"), label, styleDim.Render(strings.ToLower(st.Dialect)))
	default:
		fmt.Fprintf(w, "    %s %s %s -> %s\n", styleSuccess.Render("hit "), label, st.Input, st.Output)
	}
}
