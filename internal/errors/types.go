// Package errors defines the recoverable diagnostics produced by the folio
// pipeline.
//
// Nothing in the content pipeline is fatal: a malformed list variable, an
// expression that does not evaluate or an image that cannot be encoded all
// degrade to best-effort output plus a Diagnostic. Diagnostics carry a Kind
// for programmatic handling, a stable Code for display, and optional context
// such as the byte span in the source text they refer to.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the category of a diagnostic.
type Kind string

const (
	KindUploadRejected          Kind = "upload_rejected"
	KindListParseFailed         Kind = "list_parse_failed"
	KindExpressionEvalFailed    Kind = "expression_eval_failed"
	KindUnknownComponentKeyword Kind = "unknown_component_keyword"
	KindEncodeFailed            Kind = "encode_failed"
	KindUndeclaredVariable      Kind = "undeclared_variable"
	KindOverlappingComponent    Kind = "overlapping_component"
	KindRenderFailed            Kind = "render_failed"
	KindStaleResult             Kind = "stale_result"
)

// Diagnostic codes.
const (
	CodeUploadTooLarge     = "ERR_UPLOAD_TOO_LARGE"
	CodeUploadUndecodable  = "ERR_UPLOAD_UNDECODABLE"
	CodeUploadNotImage     = "ERR_UPLOAD_NOT_IMAGE"
	CodeListParse          = "ERR_LIST_PARSE"
	CodeExpressionEval     = "ERR_EXPRESSION_EVAL"
	CodeUnknownChartType   = "ERR_UNKNOWN_CHART_TYPE"
	CodeUnknownAlertType   = "ERR_UNKNOWN_ALERT_TYPE"
	CodeEncodeFailed       = "ERR_ENCODE_FAILED"
	CodeUndeclaredVariable = "ERR_UNDECLARED_VARIABLE"
	CodeOverlap            = "ERR_COMPONENT_OVERLAP"
	CodeRenderFailed       = "ERR_RENDER_FAILED"
	CodeStaleResult        = "ERR_STALE_RESULT"
)

// Span is a half-open byte range [Start, End) in a source text.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Diagnostic is a structured, recoverable error with context.
type Diagnostic struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	Span    *Span
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	var parts []string

	if d.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", d.Code))
	}

	if d.Span != nil {
		parts = append(parts, fmt.Sprintf("@%d-%d", d.Span.Start, d.Span.End))
	}

	parts = append(parts, d.Message)

	result := strings.Join(parts, " ")

	if d.Cause != nil {
		result += fmt.Sprintf(": %v", d.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (d *Diagnostic) Unwrap() error {
	return d.Cause
}

// Is implements error comparison by kind and code.
func (d *Diagnostic) Is(target error) bool {
	var t *Diagnostic
	if errors.As(target, &t) {
		return d.Kind == t.Kind && (t.Code == "" || d.Code == t.Code)
	}

	return false
}

// WithContext adds context information to the diagnostic.
func (d *Diagnostic) WithContext(key string, value interface{}) *Diagnostic {
	if d.Context == nil {
		d.Context = make(map[string]interface{})
	}
	d.Context[key] = value

	return d
}

// WithSpan attaches the source span the diagnostic refers to.
func (d *Diagnostic) WithSpan(start, end int) *Diagnostic {
	d.Span = &Span{Start: start, End: end}

	return d
}

// New creates a diagnostic of the given kind.
func New(kind Kind, code, message string) *Diagnostic {
	return &Diagnostic{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Wrap creates a diagnostic of the given kind around a cause.
func Wrap(kind Kind, code, message string, cause error) *Diagnostic {
	return &Diagnostic{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Sentinels usable with errors.Is to match any diagnostic of a kind.
var (
	ErrUploadRejected          = &Diagnostic{Kind: KindUploadRejected}
	ErrListParseFailed         = &Diagnostic{Kind: KindListParseFailed}
	ErrExpressionEvalFailed    = &Diagnostic{Kind: KindExpressionEvalFailed}
	ErrUnknownComponentKeyword = &Diagnostic{Kind: KindUnknownComponentKeyword}
	ErrEncodeFailed            = &Diagnostic{Kind: KindEncodeFailed}
)

// UploadTooLarge reports an asset above the hard size ceiling.
func UploadTooLarge(name string, size, ceiling int64) *Diagnostic {
	return New(KindUploadRejected, CodeUploadTooLarge,
		fmt.Sprintf("%s is %d bytes, above the %d byte upload limit", name, size, ceiling)).
		WithContext("asset", name).
		WithContext("ceiling", ceiling)
}

// UploadUndecodable reports an asset whose image data could not be decoded.
func UploadUndecodable(name string, cause error) *Diagnostic {
	return Wrap(KindUploadRejected, CodeUploadUndecodable, "cannot decode "+name, cause).
		WithContext("asset", name)
}

// UploadNotImage reports an asset that is not an image at all.
func UploadNotImage(name, mime string) *Diagnostic {
	return New(KindUploadRejected, CodeUploadNotImage,
		fmt.Sprintf("%s is %s, not an image", name, mime)).
		WithContext("asset", name)
}

// EncodeFailed reports a failed re-encode of an uploaded image.
func EncodeFailed(name string, cause error) *Diagnostic {
	return Wrap(KindEncodeFailed, CodeEncodeFailed, "cannot re-encode "+name, cause).
		WithContext("asset", name)
}

// ListParseFailed reports a list variable whose value is not a record list.
func ListParseFailed(variable string, cause error) *Diagnostic {
	return Wrap(KindListParseFailed, CodeListParse,
		fmt.Sprintf("list variable %q is not a list of records", variable), cause).
		WithContext("variable", variable)
}

// ExpressionEvalFailed reports a computed expression left unevaluated.
func ExpressionEvalFailed(expr string, cause error) *Diagnostic {
	return Wrap(KindExpressionEvalFailed, CodeExpressionEval,
		fmt.Sprintf("cannot evaluate %q", expr), cause).
		WithContext("expression", expr)
}

// UnknownKeyword reports a component block with an unrecognized type keyword.
func UnknownKeyword(code, component, keyword string) *Diagnostic {
	return New(KindUnknownComponentKeyword, code,
		fmt.Sprintf("unknown %s type %q", component, keyword)).
		WithContext("component", component).
		WithContext("keyword", keyword)
}

// UndeclaredVariable reports a conditional over a variable that is not set.
func UndeclaredVariable(name string) *Diagnostic {
	return New(KindUndeclaredVariable, CodeUndeclaredVariable,
		fmt.Sprintf("conditional references undeclared variable %q", name)).
		WithContext("variable", name)
}

// Is reports whether any error in err's chain is a diagnostic of kind.
func Is(err error, kind Kind) bool {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.Kind == kind
	}

	return false
}

// As extracts a Diagnostic from an error chain.
func As(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	ok := errors.As(err, &d)

	return d, ok
}
