// Package remote talks to the persistence service behind /api/excel.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shared-spreadsheet-editor/internal/sheet"
)

// ErrAuth is returned when the service answers 401. It ends the editing
// session.
var ErrAuth = errors.New("authentication required")

// LoadError is a failed or unparseable fetch. It is terminal for the session.
type LoadError struct {
	ID     string
	Status int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("load %s: status %d: %v", e.ID, e.Status, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.ID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SaveError is a failed flush. The working copy stays authoritative.
type SaveError struct {
	ID     string
	Status int
	Err    error
}

func (e *SaveError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("save %s: status %d: %v", e.ID, e.Status, e.Err)
	}
	return fmt.Sprintf("save %s: %v", e.ID, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// File is a stored spreadsheet as returned by the load endpoint.
type File struct {
	ID      string
	Name    string
	Headers []string
	Rows    []sheet.Row
}

// Document normalizes the payload into a Document.
func (f File) Document() (*sheet.Document, error) {
	return sheet.NewDocument(f.Headers, f.Rows)
}

type filePayload struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Headers []string    `json:"headers"`
	Rows    []sheet.Row `json:"rows"`
}

// SaveBody is the PUT request body.
type SaveBody struct {
	Name    string                   `json:"name"`
	Headers []string                 `json:"headers"`
	Rows    []map[string]sheet.Value `json:"rows"`
}

// NewSaveBody builds a save body from a document snapshot.
func NewSaveBody(name string, doc *sheet.Document) SaveBody {
	return SaveBody{Name: name, Headers: append([]string(nil), doc.Headers...), Rows: doc.Records()}
}

// Client is an HTTP client for one persistence service.
type Client struct {
	Base  string
	Token string
	HTTP  *http.Client
}

// New returns a client for base, authenticating with token.
func New(base, token string) *Client {
	return &Client{
		Base:  strings.TrimRight(base, "/"),
		Token: token,
		HTTP:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) url(id string) string {
	return c.Base + "/api/excel/" + id
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	h := c.HTTP
	if h == nil {
		h = http.DefaultClient
	}
	return h.Do(req)
}

// Load fetches file id.
func (c *Client) Load(ctx context.Context, id string) (File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(id), nil)
	if err != nil {
		return File{}, &LoadError{ID: id, Err: err}
	}
	resp, err := c.do(req)
	if err != nil {
		return File{}, &LoadError{ID: id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return File{}, ErrAuth
	}
	if resp.StatusCode != http.StatusOK {
		return File{}, &LoadError{ID: id, Status: resp.StatusCode, Err: statusErr(resp)}
	}

	var body struct {
		File *filePayload `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return File{}, &LoadError{ID: id, Err: fmt.Errorf("decode: %w", err)}
	}
	if body.File == nil {
		return File{}, &LoadError{ID: id, Err: errors.New("response has no file")}
	}
	f := body.File
	if f.ID == "" {
		f.ID = id
	}
	return File{ID: f.ID, Name: f.Name, Headers: f.Headers, Rows: f.Rows}, nil
}

// Save writes doc to file id.
func (c *Client) Save(ctx context.Context, id, name string, doc *sheet.Document) error {
	buf, err := json.Marshal(NewSaveBody(name, doc))
	if err != nil {
		return &SaveError{ID: id, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url(id), bytes.NewReader(buf))
	if err != nil {
		return &SaveError{ID: id, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return &SaveError{ID: id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuth
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &SaveError{ID: id, Status: resp.StatusCode, Err: statusErr(resp)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func statusErr(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if s := strings.TrimSpace(string(msg)); s != "" {
		return errors.New(s)
	}
	return errors.New(http.StatusText(resp.StatusCode))
}
