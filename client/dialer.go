package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// SSEDialer opens text/event-stream connections to a hub stream endpoint.
type SSEDialer struct {
	// BaseURL is the stream endpoint, e.g. "http://hub:8080/stream/chat".
	BaseURL string
	// Client defaults to http.DefaultClient. It must not set a timeout
	// that would cut a healthy long-lived stream.
	Client *http.Client
}

// Dial opens the stream with the given identity and scope parameters.
// 4xx responses come back as *TerminalError: the same request will always
// fail the same way, so retrying it is pointless.
func (d *SSEDialer) Dial(ctx context.Context, p Params) (Conn, error) {
	u, err := url.Parse(d.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid stream URL: %w", err)
	}

	q := u.Query()
	q.Set("subscriber", p.Subscriber)
	if p.Channel != "" {
		q.Set("channel", p.Channel)
	}
	if p.DisplayName != "" {
		q.Set("name", p.DisplayName)
	}
	if p.Role != "" {
		q.Set("role", p.Role)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	httpClient := d.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &TerminalError{StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("unexpected status %d opening stream", resp.StatusCode)
	}

	return &sseConn{
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// sseConn decodes event-stream frames off a response body.
type sseConn struct {
	body   io.ReadCloser
	reader *bufio.Reader
	once   sync.Once
}

// Recv reads lines until a blank line completes a frame. Comment and retry
// lines are transport chatter and never surface as frames.
func (c *sseConn) Recv() (Frame, error) {
	var kind string
	var data []byte

	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return Frame{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if kind != "" || data != nil {
				return Frame{Kind: kind, Data: data}, nil
			}
		case strings.HasPrefix(line, ":"):
			// comment frame
		case strings.HasPrefix(line, "event:"):
			kind = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			chunk := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data != nil {
				data = append(data, '\n')
			}
			data = append(data, chunk...)
		case strings.HasPrefix(line, "retry:"):
			// reconnect hint for native EventSource consumers; the
			// reconnector runs its own schedule.
		}
	}
}

func (c *sseConn) Close() error {
	var err error
	c.once.Do(func() {
		err = c.body.Close()
	})
	return err
}
