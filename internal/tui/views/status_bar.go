package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/duochat/internal/status"
	"github.com/matheus3301/duochat/internal/tui/model"
	"github.com/matheus3301/duochat/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar shows the profile, identity, connectivity, the current flash
// and the key hints for the front page.
type StatusBar struct {
	*tview.TextView
	theme *ui.Theme
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	return &StatusBar{TextView: tv, theme: theme}
}

// Update redraws the bar.
func (sb *StatusBar) Update(v model.View, flash *ui.FlashMessage, hints []ui.MenuHint) {
	sb.Clear()

	user := "logged out"
	if v.LoggedIn() {
		user = tview.Escape(v.Self)
	}
	parts := []string{
		fmt.Sprintf(" [::b]%s[-:-:-]", tview.Escape(v.Profile)),
		user,
		sb.conn(v.Conn),
		v.Now.Format("15:04"),
	}
	if flash != nil {
		color := ui.Tag(sb.theme.FlashInfoColor)
		if flash.Level == ui.FlashErr {
			color = ui.Tag(sb.theme.FlashErrColor)
		}
		parts = append(parts, fmt.Sprintf("[%s]%s[-]", color, tview.Escape(flash.Text)))
	} else if len(hints) > 0 {
		parts = append(parts, ui.FormatHints(sb.theme, hints))
	}
	_, _ = fmt.Fprint(sb, strings.Join(parts, " | "))
}

func (sb *StatusBar) conn(s status.State) string {
	switch s {
	case status.Online:
		return fmt.Sprintf("[%s]online[-]", ui.Tag(sb.theme.OnlineColor))
	case status.Offline:
		return fmt.Sprintf("[%s]offline[-]", ui.Tag(sb.theme.OfflineColor))
	default:
		return fmt.Sprintf("[%s]connecting[-]", ui.Tag(sb.theme.MutedColor))
	}
}
