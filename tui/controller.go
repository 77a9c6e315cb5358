package tui

import "github.com/nathoo/tacticore/engine/protocol"

// uiController bridges ability scripts to the Update loop. The engine
// turn runs on its own goroutine; when a script asks for a choice the
// request surfaces here, the turn blocks, and the player's answer comes
// back over the response channel. Sending a response of the wrong type
// (nil included) cancels the request.
type uiController struct {
	requests  chan protocol.Request
	responses chan protocol.Response
}

func newUIController() *uiController {
	return &uiController{
		requests:  make(chan protocol.Request),
		responses: make(chan protocol.Response),
	}
}

func (c *uiController) Cursor(req protocol.CursorRequest) (protocol.PositionResponse, error) {
	c.requests <- req
	resp, ok := (<-c.responses).(protocol.PositionResponse)
	if !ok {
		return protocol.PositionResponse{}, protocol.ErrCancelled
	}
	return resp, nil
}

func (c *uiController) Prompt(req protocol.PromptRequest) (protocol.BoolResponse, error) {
	c.requests <- req
	resp, ok := (<-c.responses).(protocol.BoolResponse)
	if !ok {
		return false, protocol.ErrCancelled
	}
	return resp, nil
}

func (c *uiController) Direction(req protocol.DirectionRequest) (protocol.DirectionResponse, error) {
	c.requests <- req
	resp, ok := (<-c.responses).(protocol.DirectionResponse)
	if !ok {
		return 0, protocol.ErrCancelled
	}
	return resp, nil
}
