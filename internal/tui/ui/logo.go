package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// NewLogo returns the logo shown above the login form.
func NewLogo(theme *Theme) *tview.TextView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBackgroundColor(theme.BgColor)

	title := Tag(theme.TitleColor)
	_, _ = fmt.Fprintf(tv,
		"[%s::b]╔╦╗╦ ╦╔═╗╔═╗╦ ╦╔═╗╔╦╗[-:-:-]\n"+
			"[%s::b] ║║║ ║║ ║║  ╠═╣╠═╣ ║ [-:-:-]\n"+
			"[%s::b]═╩╝╚═╝╚═╝╚═╝╩ ╩╩ ╩ ╩ [-:-:-]\n"+
			"[%s]two people, one thread[-:-:-]",
		title, title, title, Tag(theme.MutedColor),
	)
	return tv
}
