package server

import (
	"net/http"

	"github.com/alfredjeanlab/canvas/internal/binding"
	"github.com/alfredjeanlab/canvas/internal/board"
	"github.com/alfredjeanlab/canvas/internal/model"
)

type fieldInput struct {
	Field string `json:"field"`
}

type datasetInput struct {
	DatasetID string `json:"dataset_id"`
}

var bindingChanged = []string{"binding"}

// handleUpdateBinding handles PUT /v1/dashboards/{id}/widgets/{wid}/binding.
func (s *Server) handleUpdateBinding(w http.ResponseWriter, r *http.Request) {
	var in model.Binding
	if !decodeBody(w, r, &in) {
		return
	}
	s.editWidget(w, r, bindingChanged, func(c *board.Core, id string) (any, error) {
		return c.Binding.Update(id, &in)
	})
}

// handleSetDimension handles PUT .../binding/dimension.
func (s *Server) handleSetDimension(w http.ResponseWriter, r *http.Request) {
	var in fieldInput
	if !decodeBody(w, r, &in) {
		return
	}
	s.editWidget(w, r, bindingChanged, func(c *board.Core, id string) (any, error) {
		return c.Binding.SetDimension(id, in.Field)
	})
}

// handleSetDataset handles PUT .../binding/dataset. Switching datasets
// resets the binding and drops the chart's filter state.
func (s *Server) handleSetDataset(w http.ResponseWriter, r *http.Request) {
	var in datasetInput
	if !decodeBody(w, r, &in) {
		return
	}
	s.editWidget(w, r, []string{"binding", "filters"}, func(c *board.Core, id string) (any, error) {
		return c.Binding.SetDatasetID(id, in.DatasetID)
	})
}

// handleAddMeasure handles POST .../binding/measures.
func (s *Server) handleAddMeasure(w http.ResponseWriter, r *http.Request) {
	var in fieldInput
	if !decodeBody(w, r, &in) {
		return
	}
	s.editWidget(w, r, bindingChanged, func(c *board.Core, id string) (any, error) {
		return c.Binding.AddMeasure(id, in.Field)
	})
}

// handleUpdateMeasure handles PATCH .../binding/measures/{field}.
func (s *Server) handleUpdateMeasure(w http.ResponseWriter, r *http.Request) {
	var in binding.MeasurePatch
	if !decodeBody(w, r, &in) {
		return
	}
	field := r.PathValue("field")
	s.editWidget(w, r, bindingChanged, func(c *board.Core, id string) (any, error) {
		return c.Binding.UpdateMeasure(id, field, in)
	})
}

// handleRemoveMeasure handles DELETE .../binding/measures/{field}.
func (s *Server) handleRemoveMeasure(w http.ResponseWriter, r *http.Request) {
	field := r.PathValue("field")
	s.editWidget(w, r, bindingChanged, func(c *board.Core, id string) (any, error) {
		return c.Binding.RemoveMeasure(id, field)
	})
}
