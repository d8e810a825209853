package consulkv

import (
	"net/http"
	"strconv"
)

// Record is a single KV entry as the agent returns it. Value arrives
// base64-encoded in the wire JSON and is decoded by the JSON layer.
// ModifyIndex is the check-and-set token for SetCAS and DeleteCAS.
type Record struct {
	Key         string `json:"Key"`
	CreateIndex uint64 `json:"CreateIndex"`
	ModifyIndex uint64 `json:"ModifyIndex"`
	LockIndex   uint64 `json:"LockIndex"`
	Flags       uint64 `json:"Flags"`
	Value       []byte `json:"Value"`
	Session     string `json:"Session,omitempty"`
}

// Meta carries the X-Consul-* headers of a response. It is attached to
// ResponseError for diagnostics; successful calls don't surface it.
type Meta struct {
	ConsulIndex uint64
	KnownLeader bool
	LastContact string
}

func parseMeta(h http.Header) Meta {
	m := Meta{LastContact: h.Get("X-Consul-LastContact")}
	if v, err := strconv.ParseUint(h.Get("X-Consul-Index"), 10, 64); err == nil {
		m.ConsulIndex = v
	}
	if b, err := strconv.ParseBool(h.Get("X-Consul-KnownLeader")); err == nil {
		m.KnownLeader = b
	}
	return m
}
