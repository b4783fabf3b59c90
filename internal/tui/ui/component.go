package ui

// MenuHint describes a keyboard shortcut for the status bar.
type MenuHint struct {
	Key         string
	Description string
}

// Component is implemented by every page the app can show.
type Component interface {
	Name() string
	Hints() []MenuHint
}
