package host

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"outputrocks-nodes/internal/credentials"
)

// Doer sends HTTP requests. *http.Client and the common http client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ExecutionOptions configures an Execution.
type ExecutionOptions struct {
	Items      []Item
	Parameters map[string]interface{}
	// Defaults are the node's declared property defaults.
	Defaults       map[string]interface{}
	ContinueOnFail bool
	// ResumeURL is exposed to parameters as {{$resumeWebhookUrl}}.
	ResumeURL   string
	Credentials credentials.Store
	// CredentialIDs selects the stored credential per type; "default" otherwise.
	CredentialIDs map[string]string
	Client        Doer
}

// Execution is the ExecuteFunctions implementation backing one node run.
type Execution struct {
	opts ExecutionOptions

	mu       sync.Mutex
	waitTill time.Time
	waiting  bool
}

func NewExecution(opts ExecutionOptions) *Execution {
	if len(opts.Items) == 0 {
		opts.Items = []Item{{JSON: map[string]interface{}{}}}
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return &Execution{opts: opts}
}

func (e *Execution) InputData() []Item {
	return e.opts.Items
}

func (e *Execution) ContinueOnFail() bool {
	return e.opts.ContinueOnFail
}

func (e *Execution) NodeParameter(name string, itemIndex int) (string, error) {
	if itemIndex < 0 || itemIndex >= len(e.opts.Items) {
		return "", fmt.Errorf("item index %d out of range", itemIndex)
	}

	raw, ok := e.opts.Parameters[name]
	if !ok {
		raw = e.opts.Defaults[name]
	}

	value, err := e.resolve(raw, e.opts.Items[itemIndex])
	if err != nil {
		return "", fmt.Errorf("parameter %s: %w", name, err)
	}
	return stringify(value)
}

func (e *Execution) RequestWithAuthentication(ctx context.Context, credentialType string, req *http.Request) (*http.Response, error) {
	typ, ok := credentials.Lookup(credentialType)
	if !ok {
		return nil, fmt.Errorf("unknown credential type %s", credentialType)
	}
	auth, ok := typ.(credentials.Authenticator)
	if !ok {
		return nil, fmt.Errorf("credential type %s cannot authenticate requests", credentialType)
	}
	if e.opts.Credentials == nil {
		return nil, fmt.Errorf("no credential store configured")
	}

	data, err := e.opts.Credentials.Get(ctx, credentialType, e.credentialID(credentialType))
	if err != nil {
		return nil, err
	}
	if err := auth.Authenticate(req, data); err != nil {
		return nil, err
	}
	return e.opts.Client.Do(req.WithContext(ctx))
}

func (e *Execution) PutExecutionToWait(_ context.Context, until time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.waitTill = until
	e.waiting = true
	return nil
}

// Waiting reports whether the node asked to be parked, and until when.
func (e *Execution) Waiting() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waitTill, e.waiting
}

func (e *Execution) credentialID(credentialType string) string {
	if id := e.opts.CredentialIDs[credentialType]; id != "" {
		return id
	}
	return "default"
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*(.*?)\s*\}\}`)

// resolve evaluates "={{ ... }}" expressions. Only $json paths and the
// resume URL are supported.
func (e *Execution) resolve(raw interface{}, item Item) (interface{}, error) {
	s, ok := raw.(string)
	if !ok || !strings.HasPrefix(s, "=") {
		return raw, nil
	}
	expr := s[1:]

	if m := placeholderPattern.FindStringSubmatch(expr); m != nil && m[0] == strings.TrimSpace(expr) {
		return e.reference(m[1], item)
	}

	var firstErr error
	out := placeholderPattern.ReplaceAllStringFunc(expr, func(match string) string {
		ref := placeholderPattern.FindStringSubmatch(match)[1]
		value, err := e.reference(ref, item)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return ""
		}
		str, err := stringify(value)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return str
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (e *Execution) reference(ref string, item Item) (interface{}, error) {
	switch {
	case ref == "$resumeWebhookUrl" || ref == "$execution.resumeUrl":
		return e.opts.ResumeURL, nil
	case ref == "$json":
		return item.JSON, nil
	case strings.HasPrefix(ref, "$json."):
		return lookupPath(item.JSON, strings.TrimPrefix(ref, "$json.")), nil
	default:
		return nil, fmt.Errorf("unsupported expression %q", ref)
	}
}

func lookupPath(data map[string]interface{}, path string) interface{} {
	var current interface{} = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = m[part]
		if !ok {
			return nil
		}
	}
	return current
}

func stringify(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode parameter value: %w", err)
		}
		return string(data), nil
	}
}
