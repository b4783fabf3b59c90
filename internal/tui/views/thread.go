package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/duochat/internal/chat"
	"github.com/matheus3301/duochat/internal/tui/model"
	"github.com/matheus3301/duochat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ThreadView shows the conversation: a presence header, the numbered
// messages, the typing line and the composer.
type ThreadView struct {
	*tview.Flex
	theme    *ui.Theme
	header   *tview.TextView
	messages *tview.TextView
	typing   *tview.TextView
	composer *tview.InputField
	onSend   func(text string)
	onChange func(text string)
	lastLen  int
}

// NewThreadView creates the chat page.
func NewThreadView(theme *ui.Theme) *ThreadView {
	header := tview.NewTextView().SetDynamicColors(true)
	header.SetBackgroundColor(theme.BgColor)
	header.SetBorderPadding(0, 0, 1, 1)

	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	typing := tview.NewTextView().SetDynamicColors(true)
	typing.SetBackgroundColor(theme.BgColor)
	typing.SetBorderPadding(0, 0, 1, 0)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 1, 0, false).
		AddItem(messages, 0, 1, false).
		AddItem(typing, 1, 0, false).
		AddItem(composer, 3, 0, true)

	tv := &ThreadView{
		Flex:     flex,
		theme:    theme,
		header:   header,
		messages: messages,
		typing:   typing,
		composer: composer,
	}

	composer.SetChangedFunc(func(text string) {
		if tv.onChange != nil {
			tv.onChange(text)
		}
	})
	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || tv.onSend == nil {
			return
		}
		if text := composer.GetText(); strings.TrimSpace(text) != "" {
			tv.onSend(text)
		}
	})
	return tv
}

// Name implements Component.
func (tv *ThreadView) Name() string { return "Chat" }

// Hints implements Component.
func (tv *ThreadView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Send"},
		{Key: "Esc", Description: "Leave composer"},
	}
}

// SetOnSend sets the callback for Enter in the composer. The view does not
// clear the composer; call ClearComposer once the send is accepted.
func (tv *ThreadView) SetOnSend(fn func(text string)) {
	tv.onSend = fn
}

// SetOnChange sets the callback for every composer edit.
func (tv *ThreadView) SetOnChange(fn func(text string)) {
	tv.onChange = fn
}

// ClearComposer empties the composer.
func (tv *ThreadView) ClearComposer() {
	tv.composer.SetText("")
}

// Composer returns the composer input field (for focus management).
func (tv *ThreadView) Composer() *tview.InputField {
	return tv.composer
}

// Messages returns the messages text view (for focus management).
func (tv *ThreadView) Messages() *tview.TextView {
	return tv.messages
}

// Update redraws the page from v. The thread only scrolls to the end when
// it grew, so reading back through history survives status updates.
func (tv *ThreadView) Update(v model.View) {
	tv.header.Clear()
	_, _ = fmt.Fprint(tv.header, renderHeader(tv.theme, v))

	tv.typing.Clear()
	if text := model.TypingText(v.Typing); text != "" {
		_, _ = fmt.Fprintf(tv.typing, "[%s::i]%s[-:-:-]", ui.Tag(tv.theme.TypingColor), tview.Escape(text))
	}

	row, col := tv.messages.GetScrollOffset()
	tv.messages.SetText(renderThread(tv.theme, v.Messages, v.Self))
	if len(v.Messages) != tv.lastLen {
		tv.messages.ScrollToEnd()
		tv.lastLen = len(v.Messages)
	} else {
		tv.messages.ScrollTo(row, col)
	}
}

func renderHeader(theme *ui.Theme, v model.View) string {
	dot := ui.Tag(theme.OfflineColor)
	if v.OtherLive() {
		dot = ui.Tag(theme.OnlineColor)
	}
	name := "duochat"
	if v.HasOther {
		name = v.Other.Name
	}
	return fmt.Sprintf("[%s]●[-] [::b]%s[-:-:-] [%s]%s[-]",
		dot, tview.Escape(sanitizeForTerminal(name)), ui.Tag(theme.MutedColor), tview.Escape(model.PresenceText(v)))
}

func renderThread(theme *ui.Theme, msgs []chat.Message, self string) string {
	if len(msgs) == 0 {
		return fmt.Sprintf("[%s]No messages yet. Say hi.[-]", ui.Tag(theme.MutedColor))
	}
	var b strings.Builder
	for i, m := range msgs {
		b.WriteString(renderMessage(theme, i+1, m, self))
	}
	return b.String()
}

// renderMessage formats one entry: a numbered sender line, then the text.
func renderMessage(theme *ui.Theme, n int, m chat.Message, self string) string {
	muted := ui.Tag(theme.MutedColor)
	sender, color := m.Sender, ui.Tag(theme.TheirsColor)
	if m.Mine(self) {
		sender, color = "You", ui.Tag(theme.MineColor)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]#%d[-] [%s::b]%s[-:-:-]", muted, n, color, tview.Escape(sanitizeForTerminal(sender)))
	if t := m.Created(); !t.IsZero() {
		fmt.Fprintf(&b, " [%s]%s[-]", muted, t.Local().Format("15:04"))
	}
	if m.Mine(self) && !m.Deleted {
		tick := ui.Tag(theme.SentColor)
		if m.Status == chat.StatusRead {
			tick = ui.Tag(theme.ReadColor)
		}
		fmt.Fprintf(&b, " [%s]%s[-]", tick, model.StatusMark(m.Status))
	}
	if m.Edited && !m.Deleted {
		fmt.Fprintf(&b, " [%s::i]edited[-:-:-]", muted)
	}
	b.WriteString("\n")

	text := tview.Escape(sanitizeForTerminal(m.Text))
	if m.Deleted {
		text = fmt.Sprintf("[%s::i]%s[-:-:-]", muted, text)
	}
	b.WriteString(text)
	b.WriteString("\n\n")
	return b.String()
}
