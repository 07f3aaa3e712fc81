package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

// printer writes styled command output.
type printer struct {
	w io.Writer

	header lipgloss.Style
	cell   lipgloss.Style
	border lipgloss.Style
	label  lipgloss.Style
	accent lipgloss.Style
	dim    lipgloss.Style
}

func (o *rootOptions) printer(cmd *cobra.Command) *printer {
	w := cmd.OutOrStdout()
	r := o.renderer(w)
	return &printer{
		w:      w,
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		border: r.NewStyle().Foreground(lipgloss.Color("240")),
		label:  r.NewStyle().Foreground(lipgloss.Color("245")),
		accent: r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		dim:    r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func (p *printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			return p.cell
		})
	fmt.Fprintln(p.w, t.Render())
}

// field prints an aligned "label: value" line; empty values are skipped.
func (p *printer) field(label, value string) {
	if value == "" {
		return
	}
	p.Printf("%s %s\n", p.label.Render(fmt.Sprintf("%-13s", label+":")), value)
}

func (p *printer) profileRows(profiles []modes.Profile) [][]string {
	rows := make([][]string, 0, len(profiles))
	for _, prof := range profiles {
		rows = append(rows, []string{
			prof.Slug,
			prof.Name(),
			fmt.Sprintf("%d", prof.Tier),
			prof.Category,
			prof.State.String(),
		})
	}
	return rows
}

func (p *printer) profiles(profiles []modes.Profile) {
	if len(profiles) == 0 {
		p.Printf("%s\n", p.dim.Render("no profiles"))
		return
	}
	p.table([]string{"SLUG", "NAME", "TIER", "CATEGORY", "STATE"}, p.profileRows(profiles))
}

func (p *printer) profile(prof modes.Profile) {
	p.Printf("%s %s\n", p.accent.Render(prof.Name()), p.dim.Render("("+prof.Slug+")"))
	tier := fmt.Sprintf("%d", prof.Tier)
	if label := modes.ComplexityLabel(prof.Tier); label != "" {
		tier += " (" + label + ")"
	}
	p.field("Tier", tier)
	p.field("Category", prof.Category)
	p.field("State", prof.State.String())
	p.field("Description", prof.Description)
	p.field("Capabilities", strings.Join(prof.Capabilities, ", "))
	p.field("Tools", strings.Join(prof.Tools, ", "))
	p.field("Permissions", strings.Join(prof.Permissions, ", "))
	p.field("Expertise", strings.Join(prof.Expertise, ", "))
	p.field("Frameworks", strings.Join(prof.Frameworks, ", "))
	p.field("Languages", strings.Join(prof.Languages, ", "))
	p.field("Patterns", strings.Join(prof.Patterns, ", "))
	p.field("Parent", prof.ParentSlug)
	p.field("Children", strings.Join(prof.ChildSlugs, ", "))
	p.field("Activations", fmt.Sprintf("%d", prof.Stats.ActivationCount))
}

// encode writes v as indented JSON or as YAML.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q (use json or yaml)", format)
	}
}
