package showwaveform

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"strconv"

	"github.com/go-analyze/charts"
	"github.com/mattn/go-sixel"
	"github.com/mdouchement/actuatord"
	"github.com/mdouchement/actuatord/motion"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	var cpath string
	var resolution int
	var periods int
	var samples int

	cmd := &cobra.Command{
		Use:   "show-waveform",
		Short: "Show the simulated channel outputs for each direction",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := actuatord.Load(cpath)
			if err != nil {
				return err
			}

			params, err := cfg.Motion.Parameters()
			if err != nil {
				return err
			}

			for _, dir := range []motion.Direction{motion.DirectionForward, motion.DirectionBackward} {
				w, err := actuatord.SampleWaveform(params, dir, periods, samples)
				if err != nil {
					return fmt.Errorf("%s: %w", dir, err)
				}

				if err = render(w, dir, resolution); err != nil {
					return fmt.Errorf("%s: %w", dir, err)
				}
			}

			return nil
		},
	}
	cmd.Flags().StringVarP(&cpath, "config", "c", "/etc/actuatord/actuatord.yml", "Configfile path")
	cmd.Flags().IntVarP(&resolution, "resolution", "r", 1000, "The width size in pixel of each graph")
	cmd.Flags().IntVarP(&periods, "periods", "n", 3, "Number of PWM periods to draw in continuous mode")
	cmd.Flags().IntVarP(&samples, "samples", "s", 200, "Samples per PWM period")

	return cmd
}

func render(w actuatord.Waveform, dir motion.Direction, resolution int) error {
	// Offset the traces so they do not overlap.
	a := charts.LineSeries{Name: "A"}
	b := charts.LineSeries{Name: "B"}
	en := charts.LineSeries{Name: "EN"}
	labels := make([]string, len(w.A))
	for i := range w.A {
		a.Values = append(a.Values, w.A[i]+4)
		b.Values = append(b.Values, w.B[i]+2)
		en.Values = append(en.Values, w.Enabled[i])
		labels[i] = strconv.FormatFloat(float64(i)*w.Step, 'f', 0, 64)
	}

	opt := charts.NewLineChartOptionWithSeries(charts.LineSeriesList{a, b, en})
	opt.Theme = charts.GetTheme(charts.ThemeVividDark)
	opt.Padding = charts.NewBox(20, 20, 20, 20)
	opt.Title.Text = fmt.Sprintf("%s (hardware %s): %d Hz, offset %d/%d", dir, w.Direction, w.Frequency, w.Ticks, motion.PhasePeriodTicks)
	opt.Title.FontStyle.FontSize = 16
	opt.Title.Offset = charts.OffsetLeft
	opt.Legend = charts.LegendOption{
		Show:     actuatord.ToPtr(true),
		Offset:   charts.OffsetCenter,
		Vertical: actuatord.ToPtr(true),
		Padding:  charts.NewBox(0, 0, 0, 20),
	}
	opt.Symbol = charts.SymbolNone
	opt.LineStrokeWidth = 2
	opt.XAxis.Show = actuatord.ToPtr(true)
	opt.XAxis.Title = "µs"
	opt.XAxis.Labels = labels
	opt.XAxis.LabelCount = 10
	opt.YAxis = []charts.YAxisOption{
		{
			Show:                   actuatord.ToPtr(false),
			Min:                    actuatord.ToPtr(float64(0)),
			Max:                    actuatord.ToPtr(float64(6)),
			RangeValuePaddingScale: actuatord.ToPtr(float64(0)),
		},
	}
	p := charts.NewPainter(charts.PainterOptions{
		OutputFormat: charts.ChartOutputPNG,
		Width:        resolution,
		Height:       int(float64(resolution) / (16.0 / 9.0)),
	})

	if err := p.LineChart(opt); err != nil {
		return err
	}

	mPNG, err := p.Bytes()
	if err != nil {
		return err
	}

	m, _, err := image.Decode(bytes.NewReader(mPNG))
	if err != nil {
		return err
	}

	return sixel.NewEncoder(os.Stdout).Encode(m)
}
