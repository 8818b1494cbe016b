package provider

import "context"

/*
Interface is the capability a request handler drives: given the extracted
request text, produce a result string or fail.  Concrete brains are
interchangeable strategies injected at construction time; the engine never
inspects what a brain does with the text.

Invoke must honor ctx cancellation: the handler cancels the context when a
task is canceled, and cancellation is cooperative.
*/
type Interface interface {
	Name() string
	Invoke(ctx context.Context, text string) (string, error)
}
