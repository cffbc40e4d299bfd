package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

// Builder assembles the JSON envelope shared by every endpoint.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// Page describes one slice of a listing.
type Page struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
	Count  int `json:"count"`
}

func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the default 200. Non-positive values are ignored.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// WithPage records listing bounds under meta.page.
func (b *Builder) WithPage(limit, offset, count int) *Builder {
	return b.WithMeta("page", Page{Limit: limit, Offset: offset, Count: count})
}

type errorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// envelope is the body of every JSON response. Exactly one of Data and
// Error is meaningful, selected by Success.
type envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *errorBody     `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Build writes the response. An attached error wins over data; its status
// comes from the error kind unless an explicit 4xx/5xx status was set.
// Internal errors never expose their cause, so the request id is echoed in
// meta for correlation with the logs.
func (b *Builder) Build() error {
	if b.err == nil {
		if b.status == http.StatusNoContent {
			return b.ctx.NoContent(http.StatusNoContent)
		}
		return b.ctx.JSON(b.status, envelope{Success: true, Data: b.data, Meta: b.meta})
	}

	appErr := errorbank.From(b.err)
	status := b.status
	if status < http.StatusBadRequest {
		status = appErr.StatusCode()
	}
	if id := b.ctx.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		b.WithMeta("request_id", id)
	}
	return b.ctx.JSON(status, envelope{
		Error: &errorBody{
			Kind:    string(appErr.Kind()),
			Message: appErr.Message(),
			Details: appErr.Details(),
		},
		Meta: b.meta,
	})
}
