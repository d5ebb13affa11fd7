package banner

import (
	"portalsim/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

const ascii = `
                    __        __     _
    ____  ____  _____/ /_____ _/ /____(_)___ ___
   / __ \/ __ \/ ___/ __/ __ '/ / ___/ / __ '__ \
  / /_/ / /_/ / /  / /_/ /_/ / (__  ) / / / / / /
 / .___/\____/_/   \__/\__,_/_/____/_/_/ /_/ /_/
/_/                                              `

// GetString renders the banner with the terminal's default renderer.
func GetString() string {
	return Render(lipgloss.DefaultRenderer())
}

func Render(renderer *lipgloss.Renderer) string {
	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)
	return "\n" + style.Render(ascii) + "\n"
}
