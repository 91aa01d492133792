package cui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Dyastin-0/vortex/styles"
	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
)

const pageSize = 15

var ErrCanceled = errors.New("canceled")

const (
	optCancel = "\x00cancel"
	optFilter = "\x00filter"
	optPrev   = "\x00prev"
	optNext   = "\x00next"
	optPage   = "\x00page"
)

// picker browses the file system for the single file to send.
type picker struct {
	dir    string
	filter string
	page   int
}

func newPicker(dir string) *picker {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}

	return &picker{dir: abs}
}

// entries lists dir with directories first, narrowed by the filter.
func (p *picker) entries() ([]os.DirEntry, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	if p.filter == "" {
		return entries, nil
	}

	filtered := make([]os.DirEntry, 0, len(entries))
	filter := strings.ToLower(p.filter)
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.Name()), filter) {
			filtered = append(filtered, entry)
		}
	}

	return filtered, nil
}

func (p *picker) pages(total int) int {
	return max((total+pageSize-1)/pageSize, 1)
}

func (p *picker) options(entries []os.DirEntry) []huh.Option[string] {
	total := p.pages(len(entries))
	p.page = min(max(p.page, 0), total-1)

	var options []huh.Option[string]

	if parent := filepath.Dir(p.dir); parent != p.dir {
		options = append(options, huh.NewOption(styles.DIR.Render("../"), parent))
	}

	filterText := "filter files"
	if p.filter != "" {
		filterText = fmt.Sprintf("filter: '%s'", p.filter)
	}
	options = append(options, huh.NewOption(filterText, optFilter))

	if total > 1 {
		info := fmt.Sprintf("page %d of %d (%d items)", p.page+1, total, len(entries))
		options = append(options, huh.NewOption(styles.MUTED.Render(info), optPage))

		if p.page > 0 {
			options = append(options, huh.NewOption("<-", optPrev))
		}
		if p.page < total-1 {
			options = append(options, huh.NewOption("->", optNext))
		}
	}

	start := p.page * pageSize
	end := min(start+pageSize, len(entries))

	for _, entry := range entries[start:end] {
		path := filepath.Join(p.dir, entry.Name())

		label := entry.Name()
		if entry.IsDir() {
			label = styles.DIR.Render(label + "/")
		} else if info, err := entry.Info(); err == nil {
			label += " " + styles.MUTED.Render(humanize.Bytes(uint64(info.Size())))
		}

		options = append(options, huh.NewOption(label, path))
	}

	return append(options, huh.NewOption("cancel", optCancel))
}

// Run loops until a regular file is chosen or the picker is cancelled.
func (p *picker) Run(ctx context.Context) (string, error) {
	for {
		entries, err := p.entries()
		if err != nil {
			return "", err
		}

		var selected string
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("choose a file to send").
					Description(p.dir).
					Options(p.options(entries)...).
					Value(&selected).
					Height(20),
			),
		).RunWithContext(ctx)
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrCanceled
		}
		if err != nil {
			return "", err
		}

		switch selected {
		case optCancel:
			return "", ErrCanceled
		case optFilter:
			if err := p.askFilter(ctx); err != nil {
				return "", err
			}
		case optPrev:
			p.page--
		case optNext:
			p.page++
		case optPage:
		default:
			if p.choose(selected) {
				return selected, nil
			}
		}
	}
}

func (p *picker) askFilter(ctx context.Context) error {
	filter := p.filter

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("filter:").
				Value(&filter),
		),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}

	p.filter = strings.TrimSpace(filter)
	p.page = 0

	return nil
}

// choose enters a directory or reports that path is the file to send.
func (p *picker) choose(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}

	if stat.IsDir() {
		p.dir = path
		p.filter = ""
		p.page = 0
		return false
	}

	return stat.Mode().IsRegular()
}
