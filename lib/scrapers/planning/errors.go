package planning

import (
	"fmt"
	"time"
)

// ValidationError means the caller handed in a bad input shape. Retrying
// without fixing the input will never succeed.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid scrape request: %s", e.Reason)
}

// UnexpectedPageError means the identity provider did not serve the login
// page we expected, which usually means the upstream flow changed.
type UnexpectedPageError struct {
	Title string
}

func (e UnexpectedPageError) Error() string {
	return fmt.Sprintf("unexpected login page title: %q", e.Title)
}

// AuthenticationTimeoutError means the post-login redirect to the planning
// application never happened within the navigation timeout. Either the
// credentials are invalid or the login flow changed.
type AuthenticationTimeoutError struct {
	Timeout time.Duration
}

func (e AuthenticationTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for the planning app to load after login", e.Timeout)
}

// GroupNotFoundError means no lookup strategy could locate the requested
// group in the planning tree. Closest carries the most similar label found
// on the page, when there is one.
type GroupNotFoundError struct {
	Group   string
	Closest string
}

func (e GroupNotFoundError) Error() string {
	if e.Closest != "" {
		return fmt.Sprintf("group %q not found in the planning tree, did you mean %q?", e.Group, e.Closest)
	}
	return fmt.Sprintf("group %q not found in the planning tree", e.Group)
}

// ExportControlNotFoundError means the export button could not be located,
// which usually means upstream changed its UI structure.
type ExportControlNotFoundError struct{}

func (e ExportControlNotFoundError) Error() string {
	return "export control not found on the planning page"
}

// LinkGenerationError means the generated download link never appeared in
// the results area.
type LinkGenerationError struct{}

func (e LinkGenerationError) Error() string {
	return "no download link was generated by the planning page"
}
