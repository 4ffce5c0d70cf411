package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Skufu/LiverGuardian/internal/biomarker"
	"github.com/Skufu/LiverGuardian/internal/dashboard"
)

const maxStage = 4

// stageGauge shows the predicted stage as progress toward stage 4.
func stageGauge(state dashboard.State) *charts.Gauge {
	stage := 0
	if state.Phase == dashboard.PhaseSuccess {
		stage = state.Stage
	}
	name := "No prediction"
	if stage > 0 {
		name = fmt.Sprintf("Stage %d", stage)
	}
	progress := stage * 100 / maxStage
	if progress > 100 {
		progress = 100
	}

	gauge := charts.NewGauge()
	gauge.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Prediction Result",
			Width:     "100%",
			Height:    "260px",
		}),
		charts.WithTitleOpts(opts.Title{Title: "Prediction Result"}),
	)
	gauge.AddSeries("Stage", []opts.GaugeData{{Name: name, Value: progress}})
	return gauge
}

func factorsRadar(factors []biomarker.Factor) *charts.Radar {
	indicators := make([]*opts.Indicator, 0, len(factors))
	values := make([]float32, 0, len(factors))
	for _, f := range factors {
		indicators = append(indicators, &opts.Indicator{Name: f.Name, Max: 1})
		values = append(values, float32(f.Importance))
	}

	radar := charts.NewRadar()
	radar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Key Predictive Factors",
			Width:     "100%",
			Height:    "300px",
		}),
		charts.WithTitleOpts(opts.Title{Title: "Key Predictive Factors"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithRadarComponentOpts(opts.RadarComponent{
			Indicator:   indicators,
			Shape:       "polygon",
			SplitNumber: 4,
		}),
	)
	radar.AddSeries("Importance", []opts.RadarData{{Name: "Importance", Value: values}})
	return radar
}

type renderer interface {
	Render(w io.Writer) error
}

func (s *Server) renderChart(c *gin.Context, chart renderer) {
	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chart render failed"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) stageChart(c *gin.Context) {
	s.renderChart(c, stageGauge(s.session(c).State()))
}

func (s *Server) factorsChart(c *gin.Context) {
	s.renderChart(c, factorsRadar(biomarker.Factors()))
}
