package carbone

import (
	"context"
	"errors"
	"os"

	u "carbone2pdf/internal/utils"
)

// outputFileMode is applied when the output file is created.
const outputFileMode = 0o644

// Submitter sends one render request.
type Submitter interface {
	Submit(ctx context.Context, req RenderRequest) (*RenderResponse, error)
}

// Persist writes the body of a 200 response to outputPath, truncating any
// existing file. Other responses write nothing and return a
// *RemoteRenderingError.
func Persist(resp *RenderResponse, outputPath string) error {
	if resp == nil {
		return errors.New("persist: nil render response")
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, resp.Body, outputFileMode); err != nil {
		return &FileAccessError{Op: "write output", Path: outputPath, Err: err}
	}
	return nil
}

// Job is one render invocation.
type Job struct {
	TemplatePath string
	OutputPath   string
	Data         map[string]any
	ConvertTo    string
}

// Result describes a written document.
type Result struct {
	OutputPath string
	StatusCode int
	Bytes      int
}

// Dispatcher runs the load, build, submit and persist sequence.
type Dispatcher struct {
	submitter Submitter
}

// NewDispatcher returns a dispatcher sending through s.
func NewDispatcher(s Submitter) *Dispatcher {
	return &Dispatcher{submitter: s}
}

// Run executes job once. Every failure is terminal: the template is read
// before any request is sent, and nothing is written unless the service
// answered 200.
func (d *Dispatcher) Run(ctx context.Context, job Job) (Result, error) {
	template, err := LoadTemplate(job.TemplatePath)
	if err != nil {
		u.Error("Template unreadable", "path", job.TemplatePath, "error", err)
		return Result{}, err
	}

	req := BuildPayload(template, job.Data, job.ConvertTo)

	resp, err := d.submitter.Submit(ctx, req)
	if err != nil {
		u.Error("Render request failed", "error", err)
		return Result{}, err
	}

	if err := Persist(resp, job.OutputPath); err != nil {
		u.Error("Document not written", "status", resp.StatusCode, "error", err)
		return Result{StatusCode: resp.StatusCode}, err
	}

	u.Info("Document generated", "path", job.OutputPath, "bytes", len(resp.Body), "convert_to", req.ConvertTo)
	return Result{
		OutputPath: job.OutputPath,
		StatusCode: resp.StatusCode,
		Bytes:      len(resp.Body),
	}, nil
}
