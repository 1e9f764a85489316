package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	plotFilePerm = 0o644
	plotWidth    = "100%"
	plotHeight   = "500px"
)

// buildHeightChart plots measured tree height and the red-black bound
// 2*log2(n+1) against the operation count.
func buildHeightChart(samples []heightSample) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: plotWidth, Height: plotHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Tree height",
			Subtitle: "Measured height against the 2·log2(n+1) red-black bound",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "ops"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "levels"}),
	)

	labels := make([]string, len(samples))
	height := make([]opts.LineData, len(samples))
	bound := make([]opts.LineData, len(samples))

	for idx, sample := range samples {
		labels[idx] = strconv.Itoa(sample.Op)
		height[idx] = opts.LineData{Value: sample.Height}
		bound[idx] = opts.LineData{Value: fmt.Sprintf("%.2f", sample.Bound)}
	}

	line.SetXAxis(labels)
	line.AddSeries("height", height)
	line.AddSeries("bound", bound, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))

	return line
}

func writePlot(path string, samples []heightSample) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, plotFilePerm)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}

	renderErr := buildHeightChart(samples).Render(file)
	closeErr := file.Close()

	if renderErr != nil {
		return fmt.Errorf("render plot: %w", renderErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close plot: %w", closeErr)
	}

	return nil
}
