package views

import (
	"fmt"

	"github.com/matheus3301/duochat/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays the key and command reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (hv *HelpView) render() {
	kc := ui.Tag(hv.theme.MenuKeyColor)

	help := fmt.Sprintf(`
  [::b]Chat[-:-:-]

  [%s]i[-:-:-]        Focus composer       [%[1]s]Esc[-:-:-]    Leave composer
  [%[1]s]Enter[-:-:-]    Send (in composer)   [%[1]s]j/k[-:-:-]    Scroll
  [%[1]s]e[-:-:-]        Edit your last message
  [%[1]s]u[-:-:-]        Unsend your last message
  [%[1]s]:[-:-:-]        Command mode         [%[1]s]?[-:-:-]      Help
  [%[1]s]L[-:-:-]        Log out              [%[1]s]q[-:-:-]      Quit

  [::b]Commands (: mode)[-:-:-]

  [%[1]s]:edit <n> <text>[-:-:-]   Replace the text of your message #n
  [%[1]s]:unsend <n>[-:-:-]        Replace your message #n with a placeholder
  [%[1]s]:logout[-:-:-]            Log out and forget this identity
  [%[1]s]:help[-:-:-] / [%[1]s]:h[-:-:-]       Show this help
  [%[1]s]:quit[-:-:-] / [%[1]s]:q[-:-:-]       Quit; the identity is kept for next time

  [::b]Ticks[-:-:-]

  ✓   sent        ✓✓  delivered        [%[2]s]✓✓[-]  read
`, kc, ui.Tag(hv.theme.ReadColor))

	_, _ = fmt.Fprint(hv, help)
}
