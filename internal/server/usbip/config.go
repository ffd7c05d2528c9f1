package usbip

import "time"

// Config configures the USB/IP TCP server.
type Config struct {
	Addr                    string        `help:"Listen address." default:":3240"`
	WriteBatchFlushInterval time.Duration `help:"Maximum delay before a buffered reply is flushed." default:"1ms"`
}
