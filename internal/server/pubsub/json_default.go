//go:build !sonic

package pubsub

import "github.com/goccy/go-json"

var jsonUnmarshal = json.Unmarshal
