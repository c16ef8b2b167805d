package services

import "fmt"

// HTTPError carries a vendor's non-2xx response so callers can branch on the
// status (the render pipeline falls back to the audio path when HeyGen
// rejects a text render).
type HTTPError struct {
	Vendor string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Vendor, e.Status, body)
}
