package omero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// sessionHeader carries the session token on every authenticated request.
const sessionHeader = "X-OMERO-Session"

// WebClient is a Gateway implementation speaking the server's JSON web
// gateway. One client owns one session: either created from credentials or
// joined from an existing token.
type WebClient struct {
	base      string
	http      *http.Client
	sessionID string
	// owned is true when this client created the session and should close
	// it on Close. Clients that joined by token leave the session alive for
	// the owner to close.
	owned bool
}

// Dial establishes a gateway connection from cfg. With a SessionID set the
// existing session is joined; otherwise a new session is created from the
// user credentials.
func Dial(ctx context.Context, cfg Config) (*WebClient, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection config: %w", err)
	}

	c := &WebClient{
		base: fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		http: &http.Client{Timeout: 60 * time.Second},
	}

	if cfg.SessionID != "" {
		c.sessionID = cfg.SessionID
		// Probe the session so a bad token fails at dial time, not mid-run.
		if err := c.get(ctx, "/api/v0/session", nil); err != nil {
			return nil, fmt.Errorf("failed to join session: %w", err)
		}
		log.Printf("[Gateway] Joined session on %s", cfg.Host)
		return c, nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"user":     cfg.User,
		"password": cfg.Password,
		"group":    cfg.GroupID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v0/session", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to create session: server returned %s", resp.Status)
	}

	var session struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("server returned an empty session ID")
	}

	c.sessionID = session.ID
	c.owned = true
	log.Printf("[Gateway] Created session on %s", cfg.Host)
	return c, nil
}

// SessionID returns the active session token, for handing to worker
// processes.
func (c *WebClient) SessionID() string {
	return c.sessionID
}

// Close releases the connection. Sessions created by this client are closed
// on the server; joined sessions are left for their owner.
func (c *WebClient) Close() error {
	if !c.owned {
		return nil
	}
	req, err := http.NewRequest(http.MethodDelete, c.base+"/api/v0/session", nil)
	if err != nil {
		return err
	}
	req.Header.Set(sessionHeader, c.sessionID)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	resp.Body.Close()
	return nil
}

// Resolve looks up an object by type name and ID.
func (c *WebClient) Resolve(ctx context.Context, typeName string, id int64) (Object, error) {
	var obj Object
	path := fmt.Sprintf("/api/v0/objects/%s/%d", url.PathEscape(typeName), id)
	var payload struct {
		Type string `json:"type"`
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := c.get(ctx, path, &payload); err != nil {
		if isHTTPNotFound(err) {
			return obj, &NotFoundError{Type: typeName, ID: id}
		}
		return obj, err
	}
	return Object{Type: payload.Type, ID: payload.ID, Name: payload.Name}, nil
}

// ListChildren returns the direct children of a container in server order.
func (c *WebClient) ListChildren(ctx context.Context, o Object) ([]Object, error) {
	path := fmt.Sprintf("/api/v0/objects/%s/%d/children", url.PathEscape(o.Type), o.ID)
	var payload []struct {
		Type string `json:"type"`
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}
	children := make([]Object, len(payload))
	for i, p := range payload {
		children[i] = Object{Type: p.Type, ID: p.ID, Name: p.Name}
	}
	return children, nil
}

// PlaneDims returns the coordinate axis counts of an image.
func (c *WebClient) PlaneDims(ctx context.Context, image Object) (PlaneDims, error) {
	var dims PlaneDims
	path := fmt.Sprintf("/api/v0/images/%d/dims", image.ID)
	var payload struct {
		SizeC int `json:"size_c"`
		SizeZ int `json:"size_z"`
		SizeT int `json:"size_t"`
	}
	if err := c.get(ctx, path, &payload); err != nil {
		if isHTTPNotFound(err) {
			return dims, &NotFoundError{Type: TypeImage, ID: image.ID}
		}
		return dims, err
	}
	return PlaneDims{SizeC: payload.SizeC, SizeZ: payload.SizeZ, SizeT: payload.SizeT}, nil
}

// PlaneData fetches the raw pixel values of one plane.
func (c *WebClient) PlaneData(ctx context.Context, imageID int64, cc, z, t int) ([]float64, error) {
	path := fmt.Sprintf("/api/v0/images/%d/plane?c=%d&z=%d&t=%d", imageID, cc, z, t)
	var payload struct {
		Values []float64 `json:"values"`
	}
	if err := c.get(ctx, path, &payload); err != nil {
		if isHTTPNotFound(err) {
			return nil, &NotFoundError{Type: TypeImage, ID: imageID}
		}
		return nil, err
	}
	return payload.Values, nil
}

// httpStatusError reports a non-2xx response from the web gateway.
type httpStatusError struct {
	status int
	path   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("server returned HTTP %d for %s", e.status, e.path)
}

func isHTTPNotFound(err error) bool {
	se, ok := err.(*httpStatusError)
	return ok && se.status == http.StatusNotFound
}

// get performs an authenticated GET and decodes the JSON response into out
// (out may be nil to discard the body).
func (c *WebClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set(sessionHeader, c.sessionID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &httpStatusError{status: resp.StatusCode, path: path}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s: %w", path, err)
	}
	return nil
}
