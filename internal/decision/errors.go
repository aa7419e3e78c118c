package decision

import "fmt"

const maxQuoted = 200

// ParseError reports reasoning-service output that could not be read as a
// valid structured reply.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	text := e.Text
	if len(text) > maxQuoted {
		text = text[:maxQuoted] + "..."
	}
	return fmt.Sprintf("unparseable reply %q: %v", text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
