// Package wiz implements the JSON-over-UDP control protocol spoken by WiZ
// smart bulbs on port 38899: the setPilot/getPilot request/reply codec and
// the off-transition verifier built on top of it.
package wiz

import (
	"encoding/json"
	"fmt"

	"wizbridge/internal/bulbmodel"
)

// requestID is always 1; no correlation is performed on replies.
const requestID = 1

// Request is the outbound envelope for both setPilot and getPilot.
type Request struct {
	ID     int         `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// SetPilotParams mirrors the bulb's wire shape exactly: c and w are only
// present on the wire when non-zero.
type SetPilotParams struct {
	R       uint8 `json:"r"`
	G       uint8 `json:"g"`
	B       uint8 `json:"b"`
	C       uint8 `json:"c,omitempty"`
	W       uint8 `json:"w,omitempty"`
	Dimming uint8 `json:"dimming"`
	State   bool  `json:"state"`
}

// EncodeSetPilot builds the setPilot request body for v.
func EncodeSetPilot(v bulbmodel.SlotVector) ([]byte, error) {
	req := Request{
		ID:     requestID,
		Method: "setPilot",
		Params: SetPilotParams{
			R: v.R, G: v.G, B: v.B, C: v.C, W: v.W,
			Dimming: v.Dimming, State: v.State,
		},
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("wiz: encode setPilot: %w", err)
	}
	return data, nil
}

// EncodeGetPilot builds the getPilot request body.
func EncodeGetPilot() ([]byte, error) {
	req := Request{ID: requestID, Method: "getPilot", Params: struct{}{}}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("wiz: encode getPilot: %w", err)
	}
	return data, nil
}

// Error is a bulb-reported error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Reply is a decoded bulb response. Result is left raw since getPilot
// results carry fields this bridge never needs (temp, sceneId, ...) and
// discovery wants the raw bytes anyway.
type Reply struct {
	Method string          `json:"method"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// DecodeReply parses a single UDP datagram body as a bulb reply.
func DecodeReply(datagram []byte) (*Reply, error) {
	var r Reply
	if err := json.Unmarshal(datagram, &r); err != nil {
		return nil, fmt.Errorf("wiz: decode reply: %w", err)
	}
	return &r, nil
}

// GetPilotResult is the subset of a getPilot reply's result this bridge
// interprets: the applied on/off state, for the off-verifier, and the
// identifying/telemetry fields discovery reports.
type GetPilotResult struct {
	MAC     string `json:"mac,omitempty"`
	State   bool   `json:"state"`
	Dimming uint8  `json:"dimming,omitempty"`
	RSSI    int    `json:"rssi,omitempty"`
}

// PilotState extracts the getPilot result's applied state. It returns
// ok=false if r isn't a getPilot reply or carries no parseable result;
// state defaults to false in that case.
func (r *Reply) PilotState() (state bool, ok bool) {
	if r == nil || r.Method != "getPilot" || len(r.Result) == 0 {
		return false, false
	}
	var res GetPilotResult
	if err := json.Unmarshal(r.Result, &res); err != nil {
		return false, false
	}
	return res.State, true
}

// PilotResult extracts the full getPilot result, for discovery.
func (r *Reply) PilotResult() (GetPilotResult, bool) {
	if r == nil || r.Method != "getPilot" || len(r.Result) == 0 {
		return GetPilotResult{}, false
	}
	var res GetPilotResult
	if err := json.Unmarshal(r.Result, &res); err != nil {
		return GetPilotResult{}, false
	}
	return res, true
}
