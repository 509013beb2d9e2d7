package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func renderText(w io.Writer, r *Report) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Format.Footer = text.FormatDefault

	tbl.AppendHeader(table.Row{"Entity type", "Key", "Summary"})

	rows := 0

	r.Node().Each(func(entityTypeID string, value any) {
		slot, ok := value.(*Node)
		if !ok {
			return
		}

		slot.Each(func(key string, fragment any) {
			tbl.AppendRow(table.Row{entityTypeID, key, summarize(fragment)})

			rows++
		})
	})

	tbl.AppendFooter(table.Row{"", "", fmt.Sprintf("Total: %d entries", rows)})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write text: %w", err)
	}

	return nil
}

// summarize condenses a fragment into one line.
func summarize(fragment any) string {
	switch v := fragment.(type) {
	case int:
		return humanize.Comma(int64(v))
	case Histogram:
		return summarizeHistogram(v)
	case *Node:
		return summarizeNode(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func summarizeHistogram(h Histogram) string {
	buckets := h.Buckets()
	if len(buckets) == 0 {
		return "empty"
	}

	return fmt.Sprintf("%s entities, counts %d..%d",
		humanize.Comma(int64(h.Total())), buckets[0], buckets[len(buckets)-1])
}

func summarizeNode(n *Node) string {
	groups := 0
	instances := 0
	parts := make([]string, 0, n.Len())

	n.Each(func(key string, value any) {
		switch child := value.(type) {
		case Histogram:
			parts = append(parts, key+": "+summarizeHistogram(child))
		case *Node:
			count, ok := child.Get(KeyInstances)
			if !ok {
				return
			}

			groups++

			if c, isInt := count.(int); isInt {
				instances += c
			}
		}
	})

	if groups > 0 {
		parts = append(parts, fmt.Sprintf("%s groups, %s instances",
			humanize.Comma(int64(groups)), humanize.Comma(int64(instances))))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%d keys", n.Len())
	}

	return strings.Join(parts, "; ")
}
