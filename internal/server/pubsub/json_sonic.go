//go:build sonic

package pubsub

import "github.com/bytedance/sonic"

var jsonUnmarshal = sonic.ConfigStd.Unmarshal
