//go:build !sonic

package notify

import "github.com/goccy/go-json"

// for imroc/req
var jsonMarshal = json.Marshal
var jsonUnmarshal = json.Unmarshal
