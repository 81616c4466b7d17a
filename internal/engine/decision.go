package engine

// Outcome labels, also used as metric label values.
const (
	OutcomeRedirect               = "redirect"
	OutcomePassthrough            = "passthrough"
	OutcomePassthroughWithHeaders = "passthrough_with_headers"
)

// Decision is the result of classifying one request. The concrete type is
// always one of Redirect, Passthrough or PassthroughWithHeaders.
type Decision interface {
	Outcome() string
	decision()
}

// Redirect tells the caller to answer with StatusCode and a Location header.
type Redirect struct {
	StatusCode int
	Location   string
}

// Passthrough tells the caller to continue normal routing unmodified.
type Passthrough struct{}

// PassthroughWithHeaders tells the caller to continue normal routing and
// overwrite Headers on the eventual response.
type PassthroughWithHeaders struct {
	Headers map[string]string
}

func (Redirect) Outcome() string               { return OutcomeRedirect }
func (Passthrough) Outcome() string            { return OutcomePassthrough }
func (PassthroughWithHeaders) Outcome() string { return OutcomePassthroughWithHeaders }

func (Redirect) decision()               {}
func (Passthrough) decision()            {}
func (PassthroughWithHeaders) decision() {}
