package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/serp/pkg/filter"
	"github.com/rubiojr/serp/pkg/history"
	"github.com/rubiojr/serp/pkg/search"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// perPage is the API's default page size.
const perPage = 25

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 1, 0)

	blockStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 1, 2)

	chipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Margin(1, 0, 0, 0)
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the catalog and show results with facet counts",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "entity-type",
				Aliases: []string{"e"},
				Usage:   "Entity type to search (defaults to default_entity_type)",
			},
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "Encoded filter string, e.g. type:article,oa_status:!closed",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort key (cited_by_count, works_count, publication_date, relevance_score)",
			},
			&cli.StringFlag{
				Name:  "page",
				Usage: "Results page",
				Value: "1",
			},
			&cli.StringFlag{
				Name:  "zoom",
				Usage: "Open an entity by id after searching",
			},
			&cli.BoolFlag{
				Name:  "resume",
				Usage: "Repeat the last search from history instead of building one from flags",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the search in the navigation history",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the search state as JSON",
			},
			&cli.BoolFlag{
				Name:  "no-pager",
				Usage: "Disable pager and output directly to terminal",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runSearch(ctx, c)
		},
	}
}

func runSearch(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	var nav search.Navigator
	if !c.Bool("no-history") || c.Bool("resume") {
		store, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		nav = store.Navigator(history.DefaultSession)
	}

	o := search.New(newClient(cfg), nav, reg)
	if c.Bool("resume") {
		err = o.BootFromURL(ctx)
	} else {
		loc := searchLocation(entityTypeFlag(c, cfg), c.String("filter"), strings.Join(c.Args().Slice(), " "), c.String("sort"), c.String("page"))
		err = o.Boot(ctx, loc)
	}
	if err != nil {
		return err
	}

	if id := c.String("zoom"); id != "" {
		if err := o.SetEntityZoom(ctx, id); err != nil {
			return fmt.Errorf("opening %s: %w", id, err)
		}
	}

	if c.Bool("json") {
		data, err := json.MarshalIndent(o.State(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	return output(renderSearch(o), c.Bool("no-pager"))
}

// searchLocation builds the location a browser would carry for the given
// inputs. The text query travels inside the filter parameter.
func searchLocation(entityType, filterString, text, sort, page string) search.Location {
	q := url.Values{}
	if text = filter.CleanText(text); text != "" {
		textFilter := filter.TextSearchKey + ":" + text
		if filterString == "" {
			filterString = textFilter
		} else {
			filterString += "," + textFilter
		}
	}
	if filterString != "" {
		q.Set("filter", filterString)
	}
	if sort != "" {
		q.Set("sort", sort)
	}
	if page != "" {
		q.Set("page", page)
	}
	return search.Location{EntityType: entityType, Query: q}
}

func renderSearch(o *search.Orchestrator) string {
	st := o.State()
	var out strings.Builder

	title := fmt.Sprintf("%s · %s results · page %d · sorted by %s",
		cases.Title(language.English).String(st.EntityType),
		formatNumber(st.ResultsCount), st.Page, o.SortOption().DisplayName)
	out.WriteString(titleStyle.Render(title))
	out.WriteString("\n")

	if len(st.InputFilters) > 0 || st.TextSearch != "" {
		var chips []string
		if st.TextSearch != "" {
			chips = append(chips, chipStyle.Render(fmt.Sprintf("%q", st.TextSearch)))
		}
		for _, f := range st.InputFilters {
			chips = append(chips, chipStyle.Render(renderFilterLabel(f)))
		}
		out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, chips...))
		out.WriteString("\n")
	}

	if len(st.Results) == 0 {
		out.WriteString(noDataStyle.Render("No results"))
		out.WriteString("\n")
	}
	for i, r := range st.Results {
		out.WriteString(renderResult((st.Page-1)*perPage+i+1, r))
		out.WriteString("\n")
	}

	if len(st.ResultsFilters) > 0 {
		out.WriteString(headerStyle.Render("Facets"))
		out.WriteString("\n")
		out.WriteString(renderFacetCounts(st.ResultsFilters))
	}

	if st.Zoom.Open {
		out.WriteString(headerStyle.Render("Entity " + st.Zoom.ID))
		out.WriteString("\n")
		out.WriteString(renderResult(0, st.Zoom.Data))
		out.WriteString("\n")
	}

	if u := o.SearchAPIURL(); u != "" {
		out.WriteString(urlStyle.Render("🔗 " + u))
		out.WriteString("\n")
	}
	return out.String()
}

func renderFilterLabel(f filter.Filter) string {
	label := f.DisplayName() + ": " + f.DisplayValue
	if f.IsNegated {
		label = "not " + label
	}
	return label
}

func renderResult(n int, r map[string]any) string {
	var content strings.Builder
	name, _ := r["display_name"].(string)
	if name == "" {
		name, _ = r["title"].(string)
	}
	header := name
	if n > 0 {
		header = fmt.Sprintf("%d. %s", n, name)
	}
	content.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")).Render(header))

	var meta []string
	if id, ok := r["id"].(string); ok {
		meta = append(meta, id)
	}
	if y, ok := r["publication_year"]; ok && y != nil {
		meta = append(meta, filter.ValueString(y))
	}
	if c, ok := r["cited_by_count"].(float64); ok {
		meta = append(meta, fmt.Sprintf("%s citations", formatNumber(int(c))))
	}
	if c, ok := r["works_count"].(float64); ok {
		meta = append(meta, fmt.Sprintf("%s works", formatNumber(int(c))))
	}
	if len(meta) > 0 {
		content.WriteString("\n")
		content.WriteString(metaStyle.Render(strings.Join(meta, " · ")))
	}
	return blockStyle.Render(content.String())
}

// renderFacetCounts lists facet values grouped by facet, highest count first.
// Year facets are listed newest first.
func renderFacetCounts(filters []filter.Filter) string {
	var order []string
	groups := make(map[string][]filter.Filter)
	for _, f := range filters {
		if _, ok := groups[f.Key]; !ok {
			order = append(order, f.Key)
		}
		groups[f.Key] = append(groups[f.Key], f)
	}

	var out strings.Builder
	for _, key := range order {
		group := groups[key]
		byValue := strings.HasSuffix(key, "year")
		fmt.Fprintf(&out, "  %s\n", lipgloss.NewStyle().Bold(true).Render(group[0].DisplayName()))
		for _, f := range filter.Sorted(group, byValue) {
			fmt.Fprintf(&out, "    %-40s %8s %7s\n", f.DisplayValue, formatNumber(f.Count), formatPercent(f.Percent()))
		}
	}
	return out.String()
}
