package mikrotik

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/ispbilling/internal/observability"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type connectionMark struct {
	id     snowflake.ID
	online bool
}

type fakeStore struct {
	mu    sync.Mutex
	marks []connectionMark
	err   error
}

func (s *fakeStore) Credentials(router *routerdomain.Router) (routerdomain.Credentials, error) {
	if s.err != nil {
		return routerdomain.Credentials{}, s.err
	}
	return routerdomain.Credentials{Address: router.Address(), Username: router.Username, Password: "secret"}, nil
}

func (s *fakeStore) MarkConnection(_ context.Context, id snowflake.ID, online bool, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks = append(s.marks, connectionMark{id: id, online: online})
	return nil
}

// fakeConn answers sentences through handler and records everything it saw.
type fakeConn struct {
	handler func(sentence []string) (Reply, error)
	seen    [][]string
	closed  int
}

func (c *fakeConn) Run(sentence ...string) (Reply, error) {
	c.seen = append(c.seen, sentence)
	if c.handler == nil {
		return Reply{Done: map[string]string{}}, nil
	}
	return c.handler(sentence)
}

func (c *fakeConn) Close() error {
	c.closed++
	return nil
}

func (c *fakeConn) words() []string {
	out := make([]string, 0, len(c.seen))
	for _, s := range c.seen {
		out = append(out, s[0])
	}
	return out
}

func newTestClient(t *testing.T, conn *fakeConn, dialErr error) (*Client, *fakeStore) {
	t.Helper()
	store := &fakeStore{}
	return &Client{
		log:   zap.NewNop(),
		store: store,
		dial: func(context.Context, routerdomain.Credentials, time.Duration) (Conn, error) {
			if dialErr != nil {
				return nil, dialErr
			}
			return conn, nil
		},
		timeout: time.Second,
		now:     time.Now,
		metrics: observability.NewNopMetrics(),
	}, store
}

func testRouter() *routerdomain.Router {
	return &routerdomain.Router{ID: 42, Name: "core-1", IPAddress: "10.0.0.1", APIPort: 8728, Username: "admin"}
}

func hasAttr(sentence []string, attr string) bool {
	for _, word := range sentence[1:] {
		if word == attr {
			return true
		}
	}
	return false
}

func TestCreatePPPoEUser_Created(t *testing.T) {
	conn := &fakeConn{handler: func(s []string) (Reply, error) {
		return Reply{Done: map[string]string{"ret": "*1A"}}, nil
	}}
	c, store := newTestClient(t, conn, nil)

	res := c.CreatePPPoEUser(context.Background(), testRouter(), SecretSpec{
		Name: "cust1", Password: "pw", Profile: "10mbps", Comment: CustomerComment("ISP-2024-0001"),
	}, false)

	require.True(t, res.Success, res.Message)
	assert.Equal(t, "*1A", res.RemoteID)
	assert.Equal(t, routerdomain.SyncActionCreateUser, res.Action)
	require.Len(t, conn.seen, 1)
	assert.Equal(t, "/ppp/secret/add", conn.seen[0][0])
	assert.True(t, hasAttr(conn.seen[0], "=service=pppoe"))
	assert.True(t, hasAttr(conn.seen[0], "=comment=Customer: ISP-2024-0001"))
	assert.Equal(t, 1, conn.closed)
	assert.Equal(t, []connectionMark{{id: 42, online: true}}, store.marks)
}

func TestCreatePPPoEUser_Collision(t *testing.T) {
	handler := func(s []string) (Reply, error) {
		switch s[0] {
		case "/ppp/secret/add":
			return Reply{}, &RemoteError{Message: "failure: secret with the same name already exists"}
		case "/ppp/secret/print":
			return Reply{Rows: []map[string]string{{".id": "*7", "name": "cust1"}}}, nil
		}
		return Reply{}, errors.New("unexpected " + s[0])
	}

	t.Run("without force link", func(t *testing.T) {
		conn := &fakeConn{handler: handler}
		c, _ := newTestClient(t, conn, nil)

		res := c.CreatePPPoEUser(context.Background(), testRouter(), SecretSpec{Name: "cust1"}, false)

		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "User 'cust1' already exists")
		assert.Equal(t, 1, conn.closed)
	})

	t.Run("with force link", func(t *testing.T) {
		conn := &fakeConn{handler: handler}
		c, _ := newTestClient(t, conn, nil)

		res := c.CreatePPPoEUser(context.Background(), testRouter(), SecretSpec{Name: "cust1"}, true)

		require.True(t, res.Success, res.Message)
		assert.Equal(t, "*7", res.RemoteID)
		assert.True(t, res.Existing)
		assert.Equal(t, []string{"/ppp/secret/add", "/ppp/secret/print"}, conn.words())
		assert.Equal(t, "?name=cust1", conn.seen[1][1])
	})
}

func TestCreateQueueProfile_ExistingIsSuccess(t *testing.T) {
	conn := &fakeConn{handler: func(s []string) (Reply, error) {
		if s[0] == "/queue/simple/add" {
			return Reply{}, &RemoteError{Message: "failure: already have such name"}
		}
		return Reply{Rows: []map[string]string{{".id": "*3", "name": "10mbps"}}}, nil
	}}
	c, _ := newTestClient(t, conn, nil)

	res := c.CreateQueueProfile(context.Background(), testRouter(), QueueSpec{Name: "10mbps", Download: 10, Upload: 5, Priority: 8})

	require.True(t, res.Success, res.Message)
	assert.Equal(t, "*3", res.RemoteID)
	assert.True(t, hasAttr(conn.seen[0], "=max-limit=10M/5M"))
	assert.True(t, hasAttr(conn.seen[0], "=priority=8/8"))
}

func TestUpdateQueueProfile(t *testing.T) {
	conn := &fakeConn{handler: func(s []string) (Reply, error) {
		if s[0] == "/queue/simple/print" {
			return Reply{Rows: []map[string]string{{".id": "*3", "name": "home-10"}}}, nil
		}
		return Reply{Done: map[string]string{}}, nil
	}}
	c, _ := newTestClient(t, conn, nil)

	res := c.UpdateQueueProfile(context.Background(), testRouter(), QueueSpec{Name: "home-10", Download: 50, Upload: 5, Priority: 8})

	require.True(t, res.Success, res.Message)
	assert.Equal(t, routerdomain.SyncActionUpdateQueue, res.Action)
	assert.Equal(t, []string{"/queue/simple/print", "/queue/simple/set"}, conn.words())
	assert.True(t, hasAttr(conn.seen[1], "=.id=*3"))
	assert.True(t, hasAttr(conn.seen[1], "=max-limit=50M/5M"))
	assert.False(t, hasAttr(conn.seen[1], "=name=home-10"))
}

func TestUpdatePPPProfile(t *testing.T) {
	conn := &fakeConn{handler: func(s []string) (Reply, error) {
		if s[0] == "/ppp/profile/print" {
			return Reply{Rows: []map[string]string{{".id": "*5", "name": "home-10", "rate-limit": "5M/10M"}}}, nil
		}
		return Reply{Done: map[string]string{}}, nil
	}}
	c, _ := newTestClient(t, conn, nil)

	res := c.UpdatePPPProfile(context.Background(), testRouter(), ProfileSpec{Name: "home-10", Download: 50, Upload: 5})

	require.True(t, res.Success, res.Message)
	assert.Equal(t, routerdomain.SyncActionUpdateProfile, res.Action)
	assert.Equal(t, []string{"/ppp/profile/print", "/ppp/profile/set"}, conn.words())
	assert.True(t, hasAttr(conn.seen[1], "=.id=*5"))
	assert.True(t, hasAttr(conn.seen[1], "=rate-limit=5M/50M"))
}

func TestDeleteQueueProfile(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		conn := &fakeConn{handler: func(s []string) (Reply, error) {
			if s[0] == "/queue/simple/print" {
				return Reply{Rows: []map[string]string{{".id": "*3", "name": "home-10"}}}, nil
			}
			return Reply{Done: map[string]string{}}, nil
		}}
		c, _ := newTestClient(t, conn, nil)

		res := c.DeleteQueueProfile(context.Background(), testRouter(), "home-10")

		require.True(t, res.Success, res.Message)
		assert.Equal(t, routerdomain.SyncActionDeleteQueue, res.Action)
		assert.Equal(t, []string{"/queue/simple/remove", "=.id=*3"}, conn.seen[1])
	})

	t.Run("missing", func(t *testing.T) {
		conn := &fakeConn{}
		c, _ := newTestClient(t, conn, nil)

		res := c.DeleteQueueProfile(context.Background(), testRouter(), "ghost")

		assert.False(t, res.Success)
		assert.Equal(t, "Queue not found", res.Message)
		assert.Equal(t, []string{"/queue/simple/print"}, conn.words())
	})
}

func TestDisableAndEnablePPPoEUser(t *testing.T) {
	conn := &fakeConn{handler: func(s []string) (Reply, error) {
		if s[0] == "/ppp/secret/print" {
			return Reply{Rows: []map[string]string{{".id": "*9", "name": "cust1"}}}, nil
		}
		return Reply{Done: map[string]string{}}, nil
	}}
	c, _ := newTestClient(t, conn, nil)

	res := c.DisablePPPoEUser(context.Background(), testRouter(), "cust1")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, []string{"/ppp/secret/print", "/ppp/secret/set"}, conn.words())
	assert.True(t, hasAttr(conn.seen[1], "=.id=*9"))
	assert.True(t, hasAttr(conn.seen[1], "=disabled=yes"))

	res = c.EnablePPPoEUser(context.Background(), testRouter(), "cust1")
	require.True(t, res.Success, res.Message)
	assert.True(t, hasAttr(conn.seen[3], "=disabled=no"))
	assert.Equal(t, 2, conn.closed)
}

func TestDisablePPPoEUser_NotFound(t *testing.T) {
	conn := &fakeConn{handler: func(s []string) (Reply, error) {
		return Reply{Done: map[string]string{}}, nil
	}}
	c, _ := newTestClient(t, conn, nil)

	res := c.DisablePPPoEUser(context.Background(), testRouter(), "ghost")

	assert.False(t, res.Success)
	assert.Equal(t, "User not found", res.Message)
	assert.Equal(t, []string{"/ppp/secret/print"}, conn.words())
}

func TestDeletePPPoEUser(t *testing.T) {
	conn := &fakeConn{handler: func(s []string) (Reply, error) {
		if s[0] == "/ppp/secret/print" {
			return Reply{Rows: []map[string]string{{".id": "*4", "name": "cust1"}}}, nil
		}
		return Reply{Done: map[string]string{}}, nil
	}}
	c, _ := newTestClient(t, conn, nil)

	res := c.DeletePPPoEUser(context.Background(), testRouter(), "cust1")

	require.True(t, res.Success, res.Message)
	assert.Equal(t, []string{"/ppp/secret/print", "/ppp/secret/remove"}, conn.words())
	assert.Equal(t, []string{"/ppp/secret/remove", "=.id=*4"}, conn.seen[1])
}

func TestUnreachableRouter(t *testing.T) {
	c, store := newTestClient(t, nil, errors.New("dial tcp 10.0.0.1:8728: i/o timeout"))

	res := c.TestConnection(context.Background(), testRouter())
	assert.False(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Message, "Failed to connect to router"))

	sessions := c.ActiveConnections(context.Background(), testRouter())
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)

	assert.Equal(t, []connectionMark{{id: 42, online: false}, {id: 42, online: false}}, store.marks)
}

func TestActiveConnections(t *testing.T) {
	conn := &fakeConn{handler: func(s []string) (Reply, error) {
		return Reply{Rows: []map[string]string{
			{".id": "*1", "name": "cust1", "address": "10.10.0.2", "caller-id": "AA:BB", "uptime": "1h2m", "service": "pppoe"},
		}}, nil
	}}
	c, _ := newTestClient(t, conn, nil)

	sessions := c.ActiveConnections(context.Background(), testRouter())

	require.Len(t, sessions, 1)
	assert.Equal(t, "cust1", sessions[0].Name)
	assert.Equal(t, "AA:BB", sessions[0].CallerID)
	assert.Equal(t, 1, conn.closed)
}

func TestPanicIsContained(t *testing.T) {
	conn := &fakeConn{handler: func(s []string) (Reply, error) {
		panic("broken pipe")
	}}
	c, _ := newTestClient(t, conn, nil)

	res := c.TestConnection(context.Background(), testRouter())

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "broken pipe")
	assert.Equal(t, 1, conn.closed)
}

func TestPanicWhileDialingIsContained(t *testing.T) {
	c, _ := newTestClient(t, nil, nil)
	c.dial = func(context.Context, routerdomain.Credentials, time.Duration) (Conn, error) {
		panic("nil credentials")
	}

	var res Result
	require.NotPanics(t, func() {
		res = c.DisablePPPoEUser(context.Background(), testRouter(), "cust1")
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "nil credentials")
	assert.Equal(t, routerdomain.SyncActionDisableUser, res.Action)
}

func TestResultSyncLogRedactsPassword(t *testing.T) {
	res := Result{
		Action:  routerdomain.SyncActionCreateUser,
		Message: "boom",
		Request: map[string]string{"name": "cust1", "password": "pw"},
	}

	entry := res.SyncLog(42, "subscription", "99")

	assert.Equal(t, routerdomain.SyncStatusFailed, entry.Status)
	require.NotNil(t, entry.ErrorMessage)
	assert.Equal(t, "boom", *entry.ErrorMessage)
	assert.NotContains(t, string(entry.RequestData), "pw\"")
	assert.Contains(t, string(entry.RequestData), "***")
}

func TestQueueSpecFields(t *testing.T) {
	limit, threshold, burst := 20, 8, 10
	spec := QueueSpec{
		Name: "q", Download: 10, Upload: 5, Priority: 3,
		BurstLimitDownload: &limit, BurstLimitUpload: &limit,
		BurstThresholdDownload: &threshold, BurstThresholdUpload: &threshold,
		BurstTime: &burst,
	}

	f := spec.fields()

	assert.Equal(t, "10M/5M", f["max-limit"])
	assert.Equal(t, "3/3", f["priority"])
	assert.Equal(t, "20M/20M", f["burst-limit"])
	assert.Equal(t, "8M/8M", f["burst-threshold"])
	assert.Equal(t, "10s/10s", f["burst-time"])
	assert.Equal(t, "5M/10M", ProfileSpec{Name: "p", Download: 10, Upload: 5}.fields()["rate-limit"])
}
