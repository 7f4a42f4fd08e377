package mikrotik

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-routeros/routeros/v3"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
)

// Reply is an untyped API response: one map per !re sentence plus the !done attributes.
type Reply struct {
	Rows []map[string]string
	Done map[string]string
}

// Conn is a single API session.
type Conn interface {
	Run(sentence ...string) (Reply, error)
	Close() error
}

// Dialer opens an API session, bounded by timeout.
type Dialer func(ctx context.Context, creds routerdomain.Credentials, timeout time.Duration) (Conn, error)

// RemoteError is a !trap returned by the device.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// DialRouterOS is the production Dialer.
func DialRouterOS(ctx context.Context, creds routerdomain.Credentials, timeout time.Duration) (Conn, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	client, err := routeros.DialTimeout(creds.Address, creds.Username, creds.Password, timeout)
	if err != nil {
		return nil, translate(err)
	}
	return &routerosConn{client: client}, nil
}

type routerosConn struct {
	client *routeros.Client
}

func (c *routerosConn) Run(sentence ...string) (Reply, error) {
	reply, err := c.client.RunArgs(sentence)
	if err != nil {
		return Reply{}, translate(err)
	}
	out := Reply{Done: map[string]string{}}
	for _, re := range reply.Re {
		out.Rows = append(out.Rows, re.Map)
	}
	if reply.Done != nil && reply.Done.Map != nil {
		out.Done = reply.Done.Map
	}
	return out, nil
}

func (c *routerosConn) Close() error {
	return c.client.Close()
}

func translate(err error) error {
	var devErr *routeros.DeviceError
	if errors.As(err, &devErr) && devErr.Sentence != nil {
		if msg := devErr.Sentence.Map["message"]; msg != "" {
			return &RemoteError{Message: msg}
		}
	}
	return err
}

// command renders an API sentence: the command word, then =key=value attributes in key order.
func command(word string, attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sentence := make([]string, 0, len(keys)+1)
	sentence = append(sentence, word)
	for _, k := range keys {
		sentence = append(sentence, "="+k+"="+attrs[k])
	}
	return sentence
}

// isCollision reports a name clash on add.
func isCollision(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already have such name") || strings.Contains(msg, "already exists")
}
