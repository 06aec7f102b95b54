package main

import (
	"fmt"
	"net"

	"golang.org/x/net/netutil"
)

// listen opens the HTTP listener, bounding accepted connections when max is
// positive.
func listen(addr string, max int) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if max > 0 {
		ln = netutil.LimitListener(ln, max)
	}
	return ln, nil
}
