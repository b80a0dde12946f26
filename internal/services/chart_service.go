package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/codyseavey/portfolio-tracker/internal/models"
)

// RenderHistoryChart renders a PNG line chart from history points for one
// metric ("assets" or "pnl"). Returns raw PNG bytes.
func RenderHistoryChart(points []models.SeriesPoint, metric, baseCurrency string) ([]byte, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("need at least 2 data points, got %d", len(points))
	}

	xValues := make([]time.Time, len(points))
	yValues := make([]float64, len(points))
	for i, p := range points {
		date, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return nil, fmt.Errorf("bad snapshot date %q: %w", p.Date, err)
		}
		xValues[i] = date
		switch metric {
		case "pnl":
			yValues[i] = p.Pnl
		default:
			yValues[i] = p.Assets
		}
	}

	title := "Total Assets"
	color := drawing.ColorFromHex("ffd166")
	if metric == "pnl" {
		title = "Cumulative P&L"
		color = drawing.ColorFromHex("06d6a0")
	}

	series := chart.TimeSeries{
		Name: title,
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: yValues,
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s (%s)", title, baseCurrency),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("01-02")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{series},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}
