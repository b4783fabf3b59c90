package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme holds the colors shared by every duochat view.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	TitleColor       tcell.Color
	MenuKeyColor     tcell.Color
	MutedColor       tcell.Color

	MineColor   tcell.Color
	TheirsColor tcell.Color
	SentColor   tcell.Color
	ReadColor   tcell.Color
	TypingColor tcell.Color

	OnlineColor  tcell.Color
	OfflineColor tcell.Color

	FlashInfoColor tcell.Color
	FlashErrColor  tcell.Color
}

// DefaultTheme returns the dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorWhiteSmoke,
		BorderColor:      tcell.ColorDodgerBlue,
		BorderFocusColor: tcell.ColorLightSkyBlue,
		TitleColor:       tcell.ColorFuchsia,
		MenuKeyColor:     tcell.ColorDodgerBlue,
		MutedColor:       tcell.ColorGray,

		MineColor:   tcell.ColorAqua,
		TheirsColor: tcell.ColorOrange,
		SentColor:   tcell.ColorGray,
		ReadColor:   tcell.ColorDeepSkyBlue,
		TypingColor: tcell.ColorPaleGreen,

		OnlineColor:  tcell.ColorLimeGreen,
		OfflineColor: tcell.ColorOrangeRed,

		FlashInfoColor: tcell.ColorNavajoWhite,
		FlashErrColor:  tcell.ColorOrangeRed,
	}
}

// Tag returns c as a tview color tag value, e.g. "#1e90ff".
func Tag(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}
