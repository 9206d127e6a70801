package generation

import "context"

// EchoGenerator replies with the rendered user turn unchanged. It is used for offline
// runs and tests: the reply carries every token the model would have seen, from the
// context, the knowledge chunks and the message.
type EchoGenerator struct{}

// Generate returns p.UserTurn().
func (EchoGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Message == "" {
		return "", ErrEmptyResponse
	}
	return p.UserTurn(), nil
}
