package api

import (
	"io"
	"strings"
	"sync"

	fhttp "github.com/bogdanfinn/fhttp"
)

// fakeDoer is a scripted HTTPDoer that records the requests it receives
type fakeDoer struct {
	mu       sync.Mutex
	status   int
	body     string
	err      error
	requests []*fhttp.Request
	bodies   []string
}

// Do implements HTTPDoer
func (f *fakeDoer) Do(req *fhttp.Request) (*fhttp.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, string(data))
	} else {
		f.bodies = append(f.bodies, "")
	}

	if f.err != nil {
		return nil, f.err
	}
	return &fhttp.Response{
		StatusCode: f.status,
		Header:     make(fhttp.Header),
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func (f *fakeDoer) lastRequest() *fhttp.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeDoer) lastBody() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return ""
	}
	return f.bodies[len(f.bodies)-1]
}

// timeoutErr mimics a net.Error timeout
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
