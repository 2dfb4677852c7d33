package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/codequery/pkg/errors"
	"github.com/kart-io/codequery/pkg/utils/validator"
)

// Writer provides convenient methods to write responses to a gin.Context.
// Responses are acquired from the pool and released after serialization.
type Writer struct {
	ctx       *gin.Context
	withTime  bool
	requestID string
}

// NewWriter creates a new response writer for the given context.
func NewWriter(ctx *gin.Context) *Writer {
	return &Writer{ctx: ctx}
}

// WithTimestamp enables automatic timestamp in responses.
func (w *Writer) WithTimestamp() *Writer {
	w.withTime = true
	return w
}

// WithRequestID sets the request ID for responses.
func (w *Writer) WithRequestID(requestID string) *Writer {
	w.requestID = requestID
	return w
}

// prepare adds optional fields to the response.
func (w *Writer) prepare(r *Response) *Response {
	if w.withTime {
		r.Timestamp = time.Now().UnixMilli()
	}
	if w.requestID != "" {
		r.RequestID = w.requestID
	}
	return r
}

// write serializes the response and returns it to the pool.
func (w *Writer) write(status int, r *Response) {
	w.ctx.JSON(status, r)
	Release(r)
}

// OK sends a successful response with data.
func (w *Writer) OK(data interface{}) {
	resp := w.prepare(Success(data))
	w.write(resp.HTTPStatus(), resp)
}

// OKWithMessage sends a successful response with custom message.
func (w *Writer) OKWithMessage(message string, data interface{}) {
	resp := w.prepare(SuccessWithMessage(message, data))
	w.write(resp.HTTPStatus(), resp)
}

// Fail sends an error response using Errno.
func (w *Writer) Fail(e *errors.Errno) {
	resp := w.prepare(Err(e))
	w.write(e.HTTPStatus(), resp)
}

// FailWithCode sends an error response with code and message.
func (w *Writer) FailWithCode(code int, message string) {
	resp := w.prepare(ErrorWithCode(code, message))
	w.write(resp.HTTPStatus(), resp)
}

// FailWithError converts a standard error and sends it.
// If the error is an Errno, it uses it directly.
// Otherwise, it wraps it as ErrInternal.
func (w *Writer) FailWithError(err error) {
	w.Fail(errors.FromError(err))
}

// FailWithValidation sends a validation error response.
// It includes detailed validation error information in the response data.
func (w *Writer) FailWithValidation(verr *validator.ValidationErrors) {
	resp := w.prepare(ErrorWithData(errors.ErrValidationFailed.Code, verr.First(), verr.ToMap()))
	resp.Reason = errors.ErrValidationFailed.Reason
	resp.HTTPCode = http.StatusBadRequest
	w.write(http.StatusBadRequest, resp)
}

// FailWithBindOrValidation handles binding or validation errors appropriately.
// If err is a ValidationErrors, sends detailed validation error response.
// Otherwise, sends a generic invalid parameter error.
func (w *Writer) FailWithBindOrValidation(err error) {
	if verr, ok := err.(*validator.ValidationErrors); ok {
		w.FailWithValidation(verr)
		return
	}
	w.Fail(errors.ErrInvalidParam.WithMessage("invalid request body: " + err.Error()))
}

// PageOK sends a paginated response.
func (w *Writer) PageOK(list interface{}, total int64, page, pageSize int) {
	resp := w.prepare(Page(list, total, page, pageSize))
	w.write(resp.HTTPStatus(), resp)
}

// Send sends a custom response.
func (w *Writer) Send(r *Response) {
	resp := w.prepare(r)
	w.write(resp.HTTPStatus(), resp)
}

// ============================================================================
// Convenience functions that work directly with gin.Context
// ============================================================================

// OK sends a successful response.
func OK(ctx *gin.Context, data interface{}) {
	NewWriter(ctx).OK(data)
}

// OKWithMessage sends a successful response with message.
func OKWithMessage(ctx *gin.Context, message string, data interface{}) {
	NewWriter(ctx).OKWithMessage(message, data)
}

// Fail sends an error response using Errno.
func Fail(ctx *gin.Context, e *errors.Errno) {
	NewWriter(ctx).Fail(e)
}

// FailWithCode sends an error response with code and message.
func FailWithCode(ctx *gin.Context, code int, message string) {
	NewWriter(ctx).FailWithCode(code, message)
}

// FailWithError converts a standard error and sends it.
func FailWithError(ctx *gin.Context, err error) {
	NewWriter(ctx).FailWithError(err)
}

// FailWithValidation sends a validation error response.
func FailWithValidation(ctx *gin.Context, verr *validator.ValidationErrors) {
	NewWriter(ctx).FailWithValidation(verr)
}

// FailWithBindOrValidation handles binding or validation errors.
func FailWithBindOrValidation(ctx *gin.Context, err error) {
	NewWriter(ctx).FailWithBindOrValidation(err)
}

// PageOK sends a paginated response.
func PageOK(ctx *gin.Context, list interface{}, total int64, page, pageSize int) {
	NewWriter(ctx).PageOK(list, total, page, pageSize)
}
