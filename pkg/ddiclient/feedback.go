package ddiclient

import (
	"bytes"
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// Execution describes the server-facing state of an acted-upon action.
type Execution string

const (
	ExecutionClosed      Execution = "closed"
	ExecutionProceeding  Execution = "proceeding"
	ExecutionCanceled    Execution = "canceled"
	ExecutionScheduled   Execution = "scheduled"
	ExecutionRejected    Execution = "rejected"
	ExecutionResumed     Execution = "resumed"
)

// Finished describes the terminal outcome reported alongside Execution.
type Finished string

const (
	FinishedNone    Finished = "none"
	FinishedSuccess Finished = "success"
	FinishedFailure Finished = "failure"
)

// ResponseDeliveryListener is notified of the outcome of POSTing a Response's
// feedback. It runs on the controller thread; implementations must not
// block it (spec.md §5).
type ResponseDeliveryListener interface {
	OnSuccessfulDelivery()
	OnError()
}

// Response is the outbound feedback payload for a cancelAction or
// deploymentBase action. It is immutable once built.
type Response struct {
	Execution    Execution
	Finished     Finished
	Details      []string
	IgnoreSleep  bool
	DeliveryListener ResponseDeliveryListener
}

// wireStatus is the JSON shape POSTed to "{action}/feedback".
type wireStatus struct {
	ID     string `json:"id"`
	Status struct {
		Execution Execution `json:"execution"`
		Result    struct {
			Finished Finished `json:"finished"`
		} `json:"result"`
		Details []string `json:"details"`
	} `json:"status"`
}

func (r *Response) wire(actionID string) wireStatus {
	var w wireStatus
	w.ID = actionID
	w.Status.Execution = r.Execution
	w.Status.Result.Finished = r.Finished
	w.Status.Details = r.Details
	if w.Status.Details == nil {
		w.Status.Details = []string{}
	}
	return w
}

func (r *Response) notifyDelivery(ok bool) {
	if r.DeliveryListener == nil {
		return
	}
	if ok {
		r.DeliveryListener.OnSuccessfulDelivery()
	} else {
		r.DeliveryListener.OnError()
	}
}

// ResponseBuilder stages a Response the way the original C++ client's
// ResponseBuilder does: chained setters, validated only at build().
type ResponseBuilder struct {
	execution        Execution
	executionSet     bool
	finished         Finished
	finishedSet      bool
	details          []string
	ignoreSleep      bool
	deliveryListener ResponseDeliveryListener
}

// NewResponseBuilder starts a new staged Response construction.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{}
}

func (b *ResponseBuilder) SetExecution(e Execution) *ResponseBuilder {
	b.execution = e
	b.executionSet = true
	return b
}

func (b *ResponseBuilder) SetFinished(f Finished) *ResponseBuilder {
	b.finished = f
	b.finishedSet = true
	return b
}

func (b *ResponseBuilder) AddDetail(detail string) *ResponseBuilder {
	b.details = append(b.details, detail)
	return b
}

func (b *ResponseBuilder) SetIgnoreSleep() *ResponseBuilder {
	b.ignoreSleep = true
	return b
}

func (b *ResponseBuilder) SetResponseDeliveryListener(l ResponseDeliveryListener) *ResponseBuilder {
	b.deliveryListener = l
	return b
}

// Build validates and produces the immutable Response. Execution and
// Finished are required fields per spec.md §4.6; omitting either is a
// programmer error surfaced as IncompleteResponse.
func (b *ResponseBuilder) Build() (*Response, error) {
	if !b.executionSet {
		return nil, &IncompleteResponse{Reason: "execution not set"}
	}
	if !b.finishedSet {
		return nil, &IncompleteResponse{Reason: "finished not set"}
	}
	return &Response{
		Execution:        b.execution,
		Finished:         b.finished,
		Details:          b.details,
		IgnoreSleep:      b.ignoreSleep,
		DeliveryListener: b.deliveryListener,
	}, nil
}

// ConfigResponse is the outbound attribute map PUT to the configData link.
type ConfigResponse struct {
	Data             map[string]string
	keys             []string // insertion order, for deterministic serialization
	IgnoreSleep      bool
	DeliveryListener ResponseDeliveryListener
}

type wireConfigData struct {
	Mode   string       `json:"mode"`
	Data   orderedAttrs `json:"data"`
	Status struct {
		Execution Execution `json:"execution"`
		Result    struct {
			Finished Finished `json:"finished"`
		} `json:"result"`
	} `json:"status"`
}

// orderedAttrs marshals a key/value attribute map to a JSON object in
// insertion order. encoding/json's default map marshaling sorts keys
// alphabetically, which would violate the "insertion order preserved for
// deterministic serialization" invariant in spec.md §3.
type orderedAttrs struct {
	Keys []string
	Data map[string]string
}

func (o orderedAttrs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(o.Data[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *ConfigResponse) wire() wireConfigData {
	var w wireConfigData
	w.Mode = "merge"
	w.Data = orderedAttrs{Keys: c.keys, Data: c.Data}
	w.Status.Execution = ExecutionClosed
	w.Status.Result.Finished = FinishedSuccess
	return w
}

func (c *ConfigResponse) notifyDelivery(ok bool) {
	if c.DeliveryListener == nil {
		return
	}
	if ok {
		c.DeliveryListener.OnSuccessfulDelivery()
	} else {
		c.DeliveryListener.OnError()
	}
}

// ConfigResponseBuilder stages a ConfigResponse.
type ConfigResponseBuilder struct {
	data             map[string]string
	keys             []string
	ignoreSleep      bool
	deliveryListener ResponseDeliveryListener
}

type configAttributes struct {
	Data map[string]string `validate:"required,min=1"`
}

// NewConfigResponseBuilder starts a new staged ConfigResponse construction.
func NewConfigResponseBuilder() *ConfigResponseBuilder {
	return &ConfigResponseBuilder{data: map[string]string{}}
}

func (b *ConfigResponseBuilder) AddData(key, value string) *ConfigResponseBuilder {
	if _, exists := b.data[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.data[key] = value
	return b
}

func (b *ConfigResponseBuilder) SetIgnoreSleep() *ConfigResponseBuilder {
	b.ignoreSleep = true
	return b
}

func (b *ConfigResponseBuilder) SetResponseDeliveryListener(l ResponseDeliveryListener) *ConfigResponseBuilder {
	b.deliveryListener = l
	return b
}

// Build validates and produces the immutable ConfigResponse. At least one
// attribute is required per spec.md §4.6.
func (b *ConfigResponseBuilder) Build() (*ConfigResponse, error) {
	v := validator.New()
	if err := v.Struct(configAttributes{Data: b.data}); err != nil {
		return nil, &IncompleteResponse{Reason: "at least one config attribute is required"}
	}
	return &ConfigResponse{
		Data:             b.data,
		keys:             b.keys,
		IgnoreSleep:      b.ignoreSleep,
		DeliveryListener: b.deliveryListener,
	}, nil
}
