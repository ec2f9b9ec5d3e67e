// Package batchfile decodes batch documents from YAML (or JSON, which YAML
// subsumes) into a BatchRequest.
//
// Document shape:
//
//	options:
//	  atomic: true
//	  stop_on_error: false
//	create:
//	  - temp_id: p1
//	    type: project
//	    fields: {name: "Kitchen remodel"}
//	  - temp_id: t1
//	    type: task
//	    parent: p1
//	    fields: {name: "Get quotes", when: "next monday"}
//	update:
//	  - {type: task, id: t1, fields: {flagged: true}}
//	complete:
//	  - {type: task, id: XK29dd, date: "2026-08-01"}
//	delete:
//	  - {type: project, id: B7aQz1}
package batchfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/taskwright/taskwright/internal/types"
)

type document struct {
	Options  optionsDoc         `yaml:"options"`
	Create   []*types.BatchItem `yaml:"create"`
	Update   []operationDoc     `yaml:"update"`
	Complete []operationDoc     `yaml:"complete"`
	Delete   []operationDoc     `yaml:"delete"`
}

// optionsDoc uses pointers so absent keys fall back to defaults
// (sequential and return_mapping default to true).
type optionsDoc struct {
	Sequential    *bool `yaml:"sequential"`
	Atomic        *bool `yaml:"atomic"`
	ReturnMapping *bool `yaml:"return_mapping"`
	StopOnError   *bool `yaml:"stop_on_error"`
}

type operationDoc struct {
	Type   types.ItemType `yaml:"type"`
	ID     string         `yaml:"id"`
	Fields map[string]any `yaml:"fields"`
	Date   string         `yaml:"date"`
}

// Explicit records which option keys the document actually set. An explicit
// `atomic: false` and an absent key decode to the same ExecuteOptions value,
// so callers layering defaults underneath need this to tell them apart.
type Explicit struct {
	Sequential    bool
	Atomic        bool
	ReturnMapping bool
	StopOnError   bool
}

// Load reads and decodes a batch file.
func Load(path string) (*types.BatchRequest, Explicit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Explicit{}, fmt.Errorf("reading batch file: %w", err)
	}
	return Parse(data)
}

// Parse decodes batch document bytes.
func Parse(data []byte) (*types.BatchRequest, Explicit, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, Explicit{}, fmt.Errorf("parsing batch file: %w", err)
	}

	explicit := Explicit{
		Sequential:    doc.Options.Sequential != nil,
		Atomic:        doc.Options.Atomic != nil,
		ReturnMapping: doc.Options.ReturnMapping != nil,
		StopOnError:   doc.Options.StopOnError != nil,
	}
	opts := types.DefaultExecuteOptions()
	if explicit.Sequential {
		opts.CreateSequentially = *doc.Options.Sequential
	}
	if explicit.Atomic {
		opts.AtomicOperation = *doc.Options.Atomic
	}
	if explicit.ReturnMapping {
		opts.ReturnMapping = *doc.Options.ReturnMapping
	}
	if explicit.StopOnError {
		opts.StopOnError = *doc.Options.StopOnError
	}

	req := &types.BatchRequest{Options: opts}
	for _, item := range doc.Create {
		req.Operations = append(req.Operations, types.Operation{Kind: types.OpCreate, Item: item})
	}
	for _, op := range doc.Update {
		req.Operations = append(req.Operations, types.Operation{
			Kind: types.OpUpdate, Type: op.Type, ID: op.ID, Fields: op.Fields,
		})
	}
	for _, op := range doc.Complete {
		req.Operations = append(req.Operations, types.Operation{
			Kind: types.OpComplete, Type: op.Type, ID: op.ID, CompletionDate: op.Date,
		})
	}
	for _, op := range doc.Delete {
		req.Operations = append(req.Operations, types.Operation{
			Kind: types.OpDelete, Type: op.Type, ID: op.ID,
		})
	}

	if len(req.Operations) == 0 {
		return nil, Explicit{}, fmt.Errorf("batch file contains no operations")
	}
	return req, explicit, nil
}
