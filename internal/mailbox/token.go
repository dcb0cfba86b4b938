package mailbox

import "context"

// TokenProvider supplies the bearer credential for each request. Token
// acquisition and refresh happen outside this package.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider returning a fixed credential.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}
