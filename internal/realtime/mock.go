package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
)

// MockBackend hands out in-process connections. With Echo set, every audio
// block sent is played back and the first one triggers a demo tool call.
type MockBackend struct {
	Echo       bool
	ConnectErr error

	mu    sync.Mutex
	conns []*MockConn
}

func (b *MockBackend) Name() string { return "mock" }

func (b *MockBackend) Connect(ctx context.Context, _ ConnectConfig) (Conn, error) {
	if b.ConnectErr != nil {
		return nil, b.ConnectErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := NewMockConn()
	c.echo = b.Echo
	b.mu.Lock()
	b.conns = append(b.conns, c)
	b.mu.Unlock()
	return c, nil
}

// Last returns the most recent connection, or nil.
func (b *MockBackend) Last() *MockConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.conns) == 0 {
		return nil
	}
	return b.conns[len(b.conns)-1]
}

type MockConn struct {
	echo   bool
	inbox  chan Message
	errs   chan error
	closed chan struct{}
	once   sync.Once

	mu        sync.Mutex
	audio     [][]byte
	responses []ToolResponse
	demoSent  bool
}

func NewMockConn() *MockConn {
	return &MockConn{
		inbox:  make(chan Message, 64),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *MockConn) SendAudio(_ context.Context, pcm []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.mu.Lock()
	c.audio = append(c.audio, pcm)
	sendDemo := c.echo && !c.demoSent
	c.demoSent = c.demoSent || c.echo
	c.mu.Unlock()

	if sendDemo {
		c.Push(Message{ToolCalls: []ToolCall{{
			ID:   "demo",
			Name: ToolUpdateAnalysis,
			Args: map[string]any{
				"symptoms":    "ได้ยินเสียงของคุณแล้ว",
				"advice":      "เล่าอาการเพิ่มเติมได้เลย",
				"precautions": "หากมีอาการรุนแรง โทร 1669",
			},
		}}})
	}
	if c.echo {
		c.Push(Message{Audio: pcm})
	}
	return nil
}

func (c *MockConn) SendToolResponse(_ context.Context, resp ToolResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, resp)
	return nil
}

func (c *MockConn) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-c.inbox:
		return msg, nil
	case err := <-c.errs:
		return Message{}, err
	case <-c.closed:
		return Message{}, io.EOF
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (c *MockConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// Push queues an inbound server message.
func (c *MockConn) Push(msg Message) {
	select {
	case c.inbox <- msg:
	case <-c.closed:
	}
}

// Fail makes the next Receive return err.
func (c *MockConn) Fail(err error) {
	if err == nil {
		err = errors.New("mock connection failed")
	}
	select {
	case c.errs <- err:
	default:
	}
}

func (c *MockConn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *MockConn) SentAudio() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.audio...)
}

func (c *MockConn) ToolResponses() []ToolResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ToolResponse(nil), c.responses...)
}
