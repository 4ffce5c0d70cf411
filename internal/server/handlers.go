package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/LiverGuardian/internal/biomarker"
	"github.com/Skufu/LiverGuardian/internal/dashboard"
	"github.com/Skufu/LiverGuardian/internal/patient"
	"github.com/Skufu/LiverGuardian/internal/recommend"
)

// submitWait bounds how long a plain HTML form post waits for the
// predictor before redirecting back to a page that polls.
const submitWait = 10 * time.Second

type fieldView struct {
	patient.FieldSpec
	Value string
}

type groupView struct {
	Name   string
	Fields []fieldView
}

type pageData struct {
	Groups         []groupView
	State          dashboard.State
	Recommendation *recommend.Entry
	Biomarkers     []biomarker.Status
}

func groupFields(r patient.Record) []groupView {
	var groups []groupView
	for _, f := range patient.Fields() {
		if len(groups) == 0 || groups[len(groups)-1].Name != f.Group {
			groups = append(groups, groupView{Name: f.Group})
		}
		g := &groups[len(groups)-1]
		g.Fields = append(g.Fields, fieldView{FieldSpec: f, Value: r.Value(f.Name)})
	}
	return groups
}

func (s *Server) showDashboard(c *gin.Context) {
	d := s.session(c)
	record := d.Record()

	data := pageData{
		Groups:     groupFields(record),
		State:      d.State(),
		Biomarkers: biomarker.Statuses(record),
	}
	if rec, ok := d.Recommendation(); ok {
		data.Recommendation = &rec
	}
	c.HTML(http.StatusOK, "dashboard.tmpl", data)
}

// submitForm applies a posted form and, unless only updating fields, runs a
// prediction and waits briefly for it before redirecting back to the page.
func (s *Server) submitForm(c *gin.Context) {
	d := s.session(c)
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "invalid form")
		return
	}

	values := make(map[string]string)
	for _, name := range patient.Names() {
		if _, ok := c.Request.PostForm[name]; ok {
			values[name] = c.Request.PostForm.Get(name)
		}
	}
	d.SetAll(values)

	if c.PostForm("action") != "update" {
		done := d.Submit(context.WithoutCancel(c.Request.Context()))
		wait := time.NewTimer(submitWait)
		defer wait.Stop()
		select {
		case <-done:
		case <-wait.C:
		case <-c.Request.Context().Done():
		}
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) downloadReport(c *gin.Context) {
	d := s.session(c)
	name, body, err := d.Report(s.now())
	if errors.Is(err, dashboard.ErrNoPrediction) {
		c.JSON(http.StatusConflict, gin.H{"error": "no prediction to report"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(body))
}

func (s *Server) listFields(c *gin.Context) {
	type option struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}
	type field struct {
		Name    string   `json:"name"`
		Label   string   `json:"label"`
		Group   string   `json:"group"`
		Kind    string   `json:"kind"`
		Step    string   `json:"step,omitempty"`
		Default string   `json:"default"`
		Options []option `json:"options,omitempty"`
	}

	specs := patient.Fields()
	out := make([]field, 0, len(specs))
	for _, f := range specs {
		item := field{Name: f.Name, Label: f.Label, Group: f.Group, Kind: string(f.Kind), Step: f.Step, Default: f.Default}
		for _, o := range f.Options {
			item.Options = append(item.Options, option{Value: o.Value, Label: o.Label})
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"fields": out})
}

func formBody(r patient.Record) gin.H {
	return gin.H{"fields": r.Map(), "order": patient.Names()}
}

func (s *Server) getForm(c *gin.Context) {
	c.JSON(http.StatusOK, formBody(s.session(c).Record()))
}

func (s *Server) setField(c *gin.Context) {
	d := s.session(c)

	var payload struct {
		Value any `json:"value"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	raw := ""
	if payload.Value != nil {
		raw = fmt.Sprint(payload.Value)
	}
	if err := d.Set(c.Param("field"), raw); err != nil {
		if errors.Is(err, patient.ErrUnknownField) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, formBody(d.Record()))
}

func stateBody(d *dashboard.Dashboard) gin.H {
	body := gin.H{"state": d.State()}
	if rec, ok := d.Recommendation(); ok {
		body["recommendation"] = rec
	}
	return body
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, stateBody(s.session(c)))
}

// predict starts a submission. With ?wait=true the response carries the
// outcome; otherwise it returns 202 and the caller polls /api/state.
func (s *Server) predict(c *gin.Context) {
	d := s.session(c)

	var payload struct {
		Fields map[string]string `json:"fields"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	for name := range payload.Fields {
		if _, ok := patient.Lookup(name); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown field %q", name)})
			return
		}
	}
	d.SetAll(payload.Fields)

	done := d.Submit(context.WithoutCancel(c.Request.Context()))
	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, stateBody(d))
		return
	}

	select {
	case <-done:
		c.JSON(http.StatusOK, stateBody(d))
	case <-c.Request.Context().Done():
		c.JSON(http.StatusAccepted, stateBody(d))
	}
}

func (s *Server) getRecommendation(c *gin.Context) {
	c.JSON(http.StatusOK, recommend.LookupRaw(c.Param("stage")))
}

func (s *Server) getBiomarkers(c *gin.Context) {
	d := s.session(c)
	c.JSON(http.StatusOK, gin.H{
		"statuses": biomarker.Statuses(d.Record()),
		"factors":  biomarker.Factors(),
	})
}
