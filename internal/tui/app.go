// Package tui is the duochat terminal client.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/duochat/internal/client"
	"github.com/matheus3301/duochat/internal/logging"
	"github.com/matheus3301/duochat/internal/session"
	"github.com/matheus3301/duochat/internal/tui/keys"
	"github.com/matheus3301/duochat/internal/tui/model"
	"github.com/matheus3301/duochat/internal/tui/ui"
	"github.com/matheus3301/duochat/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	pageLogin = "login"
	pageChat  = "chat"
	pageHelp  = "help"
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	root      *tview.Flex
	pages     *tview.Pages
	theme     *ui.Theme
	vm        *model.ViewModel
	client    *client.Client
	registry  *keys.Registry
	statusBar *views.StatusBar
	login     *views.LoginView
	thread    *views.ThreadView
	help      *views.HelpView
	prompt    *ui.Prompt
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc

	components map[string]ui.Component
	back       string // page to return to from help
	prompting  bool
}

// NewApp creates the TUI over a started client.
func NewApp(c *client.Client, profile string, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		theme:     theme,
		vm:        model.NewViewModel(c, profile),
		client:    c,
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(theme),
		login:     views.NewLoginView(theme),
		thread:    views.NewThreadView(theme),
		help:      views.NewHelpView(theme),
		prompt:    ui.NewPrompt(theme),
		logger:    logging.OrNop(logger).Named("tui"),
		ctx:       ctx,
		cancel:    cancel,
		back:      pageChat,
	}
	a.components = map[string]ui.Component{
		pageLogin: a.login,
		pageChat:  a.thread,
		pageHelp:  a.help,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?', Label: "?", Description: "Help",
		Handler: a.showHelp,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Label: "q", Description: "Quit",
		Handler: a.Stop,
	})

	a.registry.AddPage(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Label: "i", Description: "Compose",
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'e', Label: "e", Description: "Edit last",
		Handler: a.editLast,
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'u', Label: "u", Description: "Unsend last",
		Handler: a.unsendLast,
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: ':', Label: ":", Description: "Command",
		Handler: func() { a.openPrompt("") },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'L', Label: "L", Description: "Log out",
		Handler: a.logout,
	})

	back := func() { a.switchTo(a.back) }
	a.registry.AddPage(pageHelp, &keys.Action{
		Key: tcell.KeyEscape, Label: "Esc", Description: "Back", Handler: back, Hidden: true,
	})
	a.registry.AddPage(pageHelp, &keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Label: "q", Description: "Back", Handler: back, Hidden: true,
	})
	a.registry.AddPage(pageHelp, &keys.Action{
		Key: tcell.KeyRune, Rune: '?', Label: "?", Description: "Back", Handler: back, Hidden: true,
	})
}

func (a *App) setupCallbacks() {
	a.login.SetOnSubmit(func(name, passcode string) {
		id, err := a.client.Login(name, passcode)
		if err != nil {
			if errors.Is(err, session.ErrInvalidCredentials) {
				a.login.ShowError("wrong name or passcode")
			} else {
				a.login.ShowError(err.Error())
			}
			return
		}
		a.logger.Info("logged in", zap.String("user", id.Name))
		a.vm.Flash.Info("logged in as " + id.Name)
		a.switchTo(pageChat)
	})
	a.login.SetOnQuit(a.Stop)

	a.thread.SetOnChange(func(text string) {
		a.client.Typing.TextChanged(text)
	})
	a.thread.SetOnSend(func(text string) {
		if err := a.client.Send(text); err != nil {
			a.vm.Flash.Err(fmt.Errorf("not sent: %w", err))
			a.render()
			return
		}
		a.thread.ClearComposer()
	})

	a.prompt.SetOnSubmit(func(text string) {
		a.closePrompt()
		a.execute(ParseCommand(text))
	})
	a.prompt.SetOnCancel(a.closePrompt)
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageLogin, a.login, true, false)
	a.pages.AddPage(pageChat, a.thread, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.statusBar, 1, 0, false)
	a.app.SetRoot(a.root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if a.prompting {
			return event
		}
		page, _ := a.pages.GetFrontPage()
		if page == pageLogin {
			return event
		}

		// Let text input widgets handle all keys normally.
		if focused, ok := a.app.GetFocus().(*tview.InputField); ok {
			if focused == a.thread.Composer() && event.Key() == tcell.KeyEscape {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			return event
		}

		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

func (a *App) switchTo(page string) {
	a.pages.SwitchToPage(page)
	switch page {
	case pageLogin:
		a.login.Reset()
		a.app.SetFocus(a.login.Form())
	case pageChat:
		a.app.SetFocus(a.thread.Composer())
	case pageHelp:
		a.app.SetFocus(a.help)
	}
	a.vm.Capture()
	a.render()
}

func (a *App) showHelp() {
	if page, _ := a.pages.GetFrontPage(); page != pageHelp {
		a.back = page
	}
	a.switchTo(pageHelp)
}

func (a *App) openPrompt(text string) {
	a.prompting = true
	a.prompt.Activate(text)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) closePrompt() {
	a.prompting = false
	a.root.ResizeItem(a.prompt, 0, 0)
	a.app.SetFocus(a.thread.Messages())
}

func (a *App) logout() {
	if err := a.client.Logout(); err != nil {
		a.vm.Flash.Err(err)
		a.render()
		return
	}
	a.logger.Info("logged out")
	a.switchTo(pageLogin)
}

func (a *App) editLast() {
	v := a.vm.View()
	n, ok := model.LastOwn(v.Messages, v.Self)
	if !ok {
		a.vm.Flash.Info("nothing of yours to edit")
		a.render()
		return
	}
	a.openPrompt(fmt.Sprintf("edit %d %s", n, v.Messages[n-1].Text))
}

func (a *App) unsendLast() {
	v := a.vm.View()
	n, ok := model.LastOwn(v.Messages, v.Self)
	if !ok {
		a.vm.Flash.Info("nothing of yours to unsend")
		a.render()
		return
	}
	a.execute(Command{Name: "unsend", Args: fmt.Sprint(n)})
}

// execute runs a ":" command and reports the outcome in the flash.
func (a *App) execute(cmd Command) {
	if err := a.run(cmd); err != nil {
		a.vm.Flash.Err(err)
	}
	a.render()
}

func (a *App) run(cmd Command) error {
	switch cmd.Name {
	case "q", "quit":
		a.Stop()
	case "h", "help":
		a.showHelp()
	case "logout":
		a.logout()
	case "unsend":
		n, _, err := cmd.Target()
		if err != nil {
			return err
		}
		v := a.vm.View()
		m, err := model.OwnMessage(v.Messages, v.Self, n)
		if err != nil {
			return err
		}
		if err := a.client.Chat.Unsend(m.ID); err != nil {
			return err
		}
		a.vm.Flash.Info(fmt.Sprintf("unsent #%d", n))
	case "edit":
		n, text, err := cmd.Target()
		if err != nil {
			return err
		}
		if text == "" {
			return errors.New("usage: :edit <n> <text>")
		}
		v := a.vm.View()
		m, err := model.OwnMessage(v.Messages, v.Self, n)
		if err != nil {
			return err
		}
		if err := a.client.Chat.Edit(m.ID, text); err != nil {
			return err
		}
		a.vm.Flash.Info(fmt.Sprintf("edited #%d", n))
	default:
		return fmt.Errorf("unknown command %q", cmd.Name)
	}
	return nil
}

// render draws the captured view. It must run on the UI goroutine.
func (a *App) render() {
	v := a.vm.View()
	page, _ := a.pages.GetFrontPage()
	if page == pageChat && !v.LoggedIn() {
		a.switchTo(pageLogin)
		return
	}
	if page == pageChat {
		a.thread.Update(v)
	}

	var flash *ui.FlashMessage
	if msg, ok := a.vm.Flash.Current(); ok {
		flash = &msg
	}
	var hints []ui.MenuHint
	if c, ok := a.components[page]; ok {
		hints = c.Hints()
	}
	if page != pageLogin {
		hints = append(hints, a.registry.Hints(page)...)
	}
	a.statusBar.Update(v, flash, hints)
}

func (a *App) startRefreshLoop() {
	a.vm.Start(a.ctx)
	go func() {
		for {
			select {
			case <-a.vm.RefreshCh():
				a.app.QueueUpdateDraw(a.render)
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Run starts the TUI application. It blocks until the user quits.
func (a *App) Run() error {
	if _, ok := a.client.Session.Current(); ok {
		a.switchTo(pageChat)
	} else {
		a.switchTo(pageLogin)
	}
	a.startRefreshLoop()
	defer a.cancel()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
