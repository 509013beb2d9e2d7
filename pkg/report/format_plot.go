package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	plotPageTitle = "Site usage histograms"
	chartWidth    = "100%"
	chartHeight   = "400px"
)

func renderPlot(w io.Writer, r *Report) error {
	page := components.NewPage()
	page.PageTitle = plotPageTitle

	for _, bar := range histogramCharts(r) {
		page.AddCharts(bar)
	}

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

// histogramCharts builds one bar chart per histogram found under an entity
// type's histogram key.
func histogramCharts(r *Report) []*charts.Bar {
	var out []*charts.Bar

	for _, entityTypeID := range r.EntityTypes() {
		value, ok := r.Get(entityTypeID, KeyHistogram)
		if !ok {
			continue
		}

		group, ok := value.(*Node)
		if !ok {
			continue
		}

		group.Each(func(name string, raw any) {
			hist, isHist := raw.(Histogram)
			if !isHist {
				return
			}

			out = append(out, histogramBar(entityTypeID+" "+name, hist))
		})
	}

	return out
}

func histogramBar(title string, h Histogram) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "entities per count"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)

	buckets := h.Buckets()
	labels := make([]string, len(buckets))
	data := make([]opts.BarData, len(buckets))

	for i, bucket := range buckets {
		labels[i] = strconv.Itoa(bucket)
		data[i] = opts.BarData{Value: h[bucket]}
	}

	bar.SetXAxis(labels)
	bar.AddSeries("entities", data)

	return bar
}
