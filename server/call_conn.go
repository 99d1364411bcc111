package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/room4-2/callintake/engine"
	"github.com/room4-2/callintake/messages"
	"go.uber.org/zap"
)

var errConnDone = errors.New("call finished")

const writeWait = 10 * time.Second

// callConn runs one call over a websocket: one text prompt out per utterance in.
type callConn struct {
	conn      *websocket.Conn
	engine    *engine.Engine
	keepAlive time.Duration
	logger    *zap.Logger

	writeMu sync.Mutex
	callID  string
	ended   bool
	done    chan struct{}
}

func newCallConn(conn *websocket.Conn, eng *engine.Engine, keepAlive time.Duration, logger *zap.Logger) *callConn {
	return &callConn{
		conn:      conn,
		engine:    eng,
		keepAlive: keepAlive,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

func (c *callConn) run(ctx context.Context) error {
	defer c.conn.Close()
	defer close(c.done)

	start, err := c.engine.StartCall(ctx)
	if err != nil {
		_, code := errorStatus(err)
		_ = c.send(messages.NewErrorMessage("", code, err.Error()))
		c.closeWith(websocket.CloseTryAgainLater, "session unavailable")
		return err
	}
	c.callID = start.CallID
	c.logger = c.logger.With(zap.String("call_id", c.callID))
	c.logger.Info("✅ WebSocket call connected")
	defer c.finish(ctx)

	if err := c.send(messages.NewStatusMessage(c.callID, "connected", "")); err != nil {
		return err
	}
	if err := c.send(messages.NewPromptMessage(c.callID, start.Prompt, start.State)); err != nil {
		return err
	}

	if c.keepAlive > 0 {
		c.extendDeadline()
		c.conn.SetPongHandler(func(string) error {
			c.extendDeadline()
			return nil
		})
		go c.pingLoop()
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if c.keepAlive > 0 {
			c.extendDeadline()
		}

		done, err := c.handle(ctx, data)
		if err != nil {
			return err
		}
		if done {
			return errConnDone
		}
	}
}

// handle processes one client message and reports whether the call is over.
func (c *callConn) handle(ctx context.Context, data []byte) (bool, error) {
	var msg messages.ClientMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return false, c.send(messages.NewErrorMessage(c.callID, messages.ErrCodeInvalidMessage, "message must be JSON"))
	}

	switch msg.Type {
	case messages.TypeUtterance:
		var payload messages.UtterancePayload
		if err := sonic.Unmarshal(msg.Payload, &payload); err != nil {
			return false, c.send(messages.NewErrorMessage(c.callID, messages.ErrCodeInvalidMessage, "invalid utterance payload"))
		}
		res, err := c.engine.SubmitInput(ctx, c.callID, payload.Text)
		if err != nil {
			_, code := errorStatus(err)
			_ = c.send(messages.NewErrorMessage(c.callID, code, err.Error()))
			return true, nil
		}
		if err := c.send(messages.NewTurnMessage(res)); err != nil {
			return false, err
		}
		return res.State.Terminal(), nil

	case messages.TypeControl:
		var payload messages.ControlPayload
		if err := sonic.Unmarshal(msg.Payload, &payload); err != nil {
			return false, c.send(messages.NewErrorMessage(c.callID, messages.ErrCodeInvalidMessage, "invalid control payload"))
		}
		switch payload.Action {
		case messages.ActionPing:
			return false, c.send(messages.NewStatusMessage(c.callID, "pong", ""))
		case messages.ActionEnd:
			return true, nil
		case messages.ActionRestart:
			res, err := c.engine.RestartCall(ctx, c.callID)
			if err != nil {
				_, code := errorStatus(err)
				_ = c.send(messages.NewErrorMessage(c.callID, code, err.Error()))
				return true, nil
			}
			return false, c.send(messages.NewPromptMessage(c.callID, res.Prompt, res.State))
		default:
			return false, c.send(messages.NewErrorMessage(c.callID, messages.ErrCodeInvalidMessage, "unknown action: "+payload.Action))
		}

	default:
		return false, c.send(messages.NewErrorMessage(c.callID, messages.ErrCodeInvalidMessage, "unknown message type: "+msg.Type))
	}
}

// finish ends the call once, sends the summary, and closes the socket.
func (c *callConn) finish(ctx context.Context) {
	if c.ended {
		return
	}
	c.ended = true

	res, err := c.engine.EndCall(ctx, c.callID)
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		// Already reaped or ended by another transport.
	case err != nil:
		c.logger.Warn("⚠️ Failed to end call", zap.Error(err))
	default:
		_ = c.send(messages.NewSummaryMessage(res))
	}
	_ = c.send(messages.NewStatusMessage(c.callID, "ended", ""))
	c.closeWith(websocket.CloseNormalClosure, "call ended")
	c.logger.Info("🔌 WebSocket call closed")
}

func (c *callConn) send(msg *messages.ServerMessage) error {
	body, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, body)
}

func (c *callConn) closeWith(code int, text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}

func (c *callConn) extendDeadline() {
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * c.keepAlive))
}

func (c *callConn) pingLoop() {
	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
