package cui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Dyastin-0/vortex/config"
	"github.com/Dyastin-0/vortex/styles"
	"github.com/charmbracelet/huh"
)

func formatProfile(p config.Profile) string {
	name := p.Name
	if len(name) > 20 {
		name = name[:17] + "..."
	}

	me := ""
	if p.Me != "" {
		me = styles.MUTED.Render("as " + p.Me)
	}

	return fmt.Sprintf("%-20s %-25s %s", name, p.Addr, me)
}

// profileOptions lists the profiles that have somewhere to dial, by name.
func profileOptions(profiles []config.Profile) []huh.Option[string] {
	profiles = slices.DeleteFunc(slices.Clone(profiles), func(p config.Profile) bool {
		return p.Addr == ""
	})

	slices.SortFunc(profiles, func(a, b config.Profile) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	options := make([]huh.Option[string], 0, len(profiles))
	for _, p := range profiles {
		options = append(options, huh.NewOption(formatProfile(p), p.Addr))
	}

	return options
}

// PickProfile asks which saved profile to connect to and returns its
// address.
func (u *UI) PickProfile(ctx context.Context) (string, bool) {
	options := profileOptions(u.profiles)
	if len(options) == 0 {
		return "", false
	}

	var addr string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("connect to").
				Options(append(options, huh.NewOption("cancel", optCancel))...).
				Value(&addr),
		),
	).RunWithContext(ctx)
	if err != nil || addr == optCancel {
		return "", false
	}

	return addr, true
}
