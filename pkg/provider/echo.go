package provider

import "context"

/*
EchoProvider fulfils every request by echoing the input back.  It
demonstrates the contract and makes the "out of the box" experience
pleasant without any model or pattern matching behind it.
*/
type EchoProvider struct{}

func NewEchoProvider() *EchoProvider {
	return &EchoProvider{}
}

func (prvdr *EchoProvider) Name() string { return "echo" }

func (prvdr *EchoProvider) Invoke(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return text, nil
}
