package browser

import (
	"errors"
	"time"
)

// ErrElementNotFound is returned when a selector matches nothing
var ErrElementNotFound = errors.New("element not found")

// Cookie is a name/value pair pinned to a domain and path
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Page is the slice of a browser tab the check-in flows need. The rod
// implementation lives in this package; tests drive the flows with fakes
// fed from static HTML.
type Page interface {
	Navigate(url string) error
	WaitElement(selector string, timeout time.Duration) error
	Attribute(selector, name string) (string, error)
	HTML() (string, error)
	Click(selector string) error
	Reload() error
	Screenshot(path string) error
	Cookies() (map[string]string, error)
	ClearCookies() error
	SetCookies(cookies []Cookie) error
}
