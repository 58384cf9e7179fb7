package registry

import (
	"encoding/json"
	"time"
)

// Instance describes one registered service instance and its current
// health. Fields other than Healthy and LastUpdated are immutable after
// registration.
//
// The bound token is kept on the record, explicit rather than held in a
// side map, but is unexported and excluded from JSON so it can never be
// logged or serialized by accident.
type Instance struct {
	ID          string
	ServiceType string
	Host        string
	Port        string
	Created     int64
	LastUpdated int64
	Healthy     bool
	Meta        map[string]interface{}

	token string
}

// instanceJSON is the wire shape of Instance — deliberately spelled out
// as its own type (rather than reusing Instance's field tags) so the
// absence of a token field is explicit and reviewable.
type instanceJSON struct {
	ID          string                 `json:"id"`
	ServiceType string                 `json:"serviceType"`
	Host        string                 `json:"host"`
	Port        string                 `json:"port"`
	Created     int64                  `json:"created"`
	LastUpdated int64                  `json:"lastUpdated"`
	Healthy     bool                   `json:"healthy"`
	Meta        map[string]interface{} `json:"meta,omitempty"`
}

// MarshalJSON implements json.Marshaler, explicitly omitting the token.
func (i Instance) MarshalJSON() ([]byte, error) {
	return json.Marshal(instanceJSON{
		ID:          i.ID,
		ServiceType: i.ServiceType,
		Host:        i.Host,
		Port:        i.Port,
		Created:     i.Created,
		LastUpdated: i.LastUpdated,
		Healthy:     i.Healthy,
		Meta:        i.Meta,
	})
}

// clone returns a copy to hand to callers outside the dual index's lock.
// The Meta map itself is copied, so adding, replacing or deleting its keys
// on the copy leaves engine state untouched; values nested inside Meta
// (maps, slices) are not copied and remain shared with the stored record.
func (i Instance) clone() Instance {
	c := i
	if i.Meta != nil {
		c.Meta = make(map[string]interface{}, len(i.Meta))
		for k, v := range i.Meta {
			c.Meta[k] = v
		}
	}
	return c
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
