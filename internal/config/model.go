package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stratawm/strata/internal/deco"
	"github.com/stratawm/strata/internal/wm"
)

var defaultConfig = Config{
	Desktops:     4,
	DesktopNames: []string{"main", "web", "chat", "misc"},
	FocusFollows: false,
	Theme: Theme{
		BorderWidth:   2,
		TitleHeight:   22,
		ActiveColor:   "#3b4252",
		InactiveColor: "#2e3440",
		ActiveText:    "#eceff4",
		InactiveText:  "#7a8394",
		UrgentColor:   "#bf616a",
		Font:          "fixed",
	},
	HTTP: HTTP{
		Host: "127.0.0.1",
		Port: 8666,
	},
}

type Config struct {
	Desktops     uint32   `yaml:"desktops"`
	DesktopNames []string `yaml:"desktop_names"`
	FocusFollows bool     `yaml:"focus_follows_mouse"`
	Theme        Theme    `yaml:"theme"`
	HTTP         HTTP     `yaml:"http"`
}

type Theme struct {
	BorderWidth   uint16 `yaml:"border_width"`
	TitleHeight   uint16 `yaml:"title_height"`
	ActiveColor   string `yaml:"active_color"`
	InactiveColor string `yaml:"inactive_color"`
	ActiveText    string `yaml:"active_text"`
	InactiveText  string `yaml:"inactive_text"`
	UrgentColor   string `yaml:"urgent_color"`
	Font          string `yaml:"font"`
}

// HTTP is where the diagnostics server listens.
type HTTP struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Options converts the file form into the manager's policy snapshot. Zero
// values fall back to the built-in defaults; a malformed color is an error so
// a bad reload never half-applies.
func (c Config) Options() (wm.Options, error) {
	opts := wm.DefaultOptions()

	if c.Desktops > 0 {
		opts.Desktops = c.Desktops
	}
	opts.DesktopNames = c.DesktopNames
	opts.FocusFollows = c.FocusFollows

	theme := deco.DefaultTheme()
	if c.Theme.BorderWidth > 0 {
		theme.BorderWidth = c.Theme.BorderWidth
	}
	if c.Theme.TitleHeight > 0 {
		theme.TitleHeight = c.Theme.TitleHeight
	}
	if c.Theme.Font != "" {
		theme.FontName = c.Theme.Font
	}

	for _, p := range []struct {
		src string
		dst *uint32
	}{
		{c.Theme.ActiveColor, &theme.ActiveColor},
		{c.Theme.InactiveColor, &theme.InactiveColor},
		{c.Theme.ActiveText, &theme.ActiveText},
		{c.Theme.InactiveText, &theme.InactiveText},
		{c.Theme.UrgentColor, &theme.UrgentColor},
	} {
		if p.src == "" {
			continue
		}
		v, err := parseColor(p.src)
		if err != nil {
			return wm.Options{}, err
		}
		*p.dst = v
	}
	opts.Theme = theme

	return opts, nil
}

func parseColor(s string) (uint32, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return 0, fmt.Errorf("config: color %q must be #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("config: color %q: %w", s, err)
	}
	return uint32(v), nil
}
