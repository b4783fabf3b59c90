package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/duochat/internal/tui/ui"
	"github.com/rivo/tview"
)

// LoginView asks for a user name and passcode.
type LoginView struct {
	*tview.Flex
	theme    *ui.Theme
	form     *tview.Form
	message  *tview.TextView
	onSubmit func(name, passcode string)
	onQuit   func()
}

// NewLoginView creates the login page.
func NewLoginView(theme *ui.Theme) *LoginView {
	lv := &LoginView{theme: theme}

	lv.form = tview.NewForm().
		AddInputField("Name", "", 24, nil, nil).
		AddPasswordField("Passcode", "", 24, '*', nil).
		AddButton("Log in", lv.submit).
		AddButton("Quit", func() {
			if lv.onQuit != nil {
				lv.onQuit()
			}
		})
	lv.form.SetBorder(true)
	lv.form.SetBorderColor(theme.BorderColor)
	lv.form.SetTitle(" Log in ")
	lv.form.SetTitleColor(theme.TitleColor)
	lv.form.SetBackgroundColor(theme.BgColor)
	lv.form.SetFieldBackgroundColor(theme.BgColor)
	lv.form.SetFieldTextColor(theme.FgColor)
	lv.form.SetLabelColor(theme.MenuKeyColor)
	lv.form.SetButtonBackgroundColor(theme.BorderColor)
	lv.form.SetButtonTextColor(theme.BgColor)
	lv.form.SetButtonsAlign(tview.AlignCenter)

	// Enter in the passcode field submits without tabbing to the button.
	passcode := lv.form.GetFormItemByLabel("Passcode").(*tview.InputField)
	passcode.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			lv.submit()
		}
	})

	lv.message = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	lv.message.SetBackgroundColor(theme.BgColor)

	column := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(ui.NewLogo(theme), 5, 0, false).
		AddItem(lv.form, 9, 0, true).
		AddItem(lv.message, 2, 0, false).
		AddItem(nil, 0, 1, false)

	lv.Flex = tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(column, 44, 0, true).
		AddItem(nil, 0, 1, false)
	lv.Flex.SetBackgroundColor(theme.BgColor)
	return lv
}

// Name implements Component.
func (lv *LoginView) Name() string { return "Login" }

// Hints implements Component.
func (lv *LoginView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Log in"},
	}
}

// SetOnSubmit sets the callback for a login attempt.
func (lv *LoginView) SetOnSubmit(fn func(name, passcode string)) {
	lv.onSubmit = fn
}

// SetOnQuit sets the callback for the Quit button.
func (lv *LoginView) SetOnQuit(fn func()) {
	lv.onQuit = fn
}

// ShowError displays msg under the form and clears the passcode.
func (lv *LoginView) ShowError(msg string) {
	lv.form.GetFormItemByLabel("Passcode").(*tview.InputField).SetText("")
	lv.message.Clear()
	_, _ = fmt.Fprintf(lv.message, "[%s]%s[-]", ui.Tag(lv.theme.FlashErrColor), tview.Escape(msg))
}

// Reset clears both fields and the message.
func (lv *LoginView) Reset() {
	lv.form.GetFormItemByLabel("Name").(*tview.InputField).SetText("")
	lv.form.GetFormItemByLabel("Passcode").(*tview.InputField).SetText("")
	lv.form.SetFocus(0)
	lv.message.Clear()
}

// Form returns the form for focus management.
func (lv *LoginView) Form() *tview.Form {
	return lv.form
}

func (lv *LoginView) submit() {
	name := strings.TrimSpace(lv.form.GetFormItemByLabel("Name").(*tview.InputField).GetText())
	passcode := lv.form.GetFormItemByLabel("Passcode").(*tview.InputField).GetText()
	if name == "" {
		lv.ShowError("enter a name")
		return
	}
	if lv.onSubmit != nil {
		lv.onSubmit(name, passcode)
	}
}
