// Package client is a small request/reply client for the audiows server.
//
// Each request writes one text frame and blocks until the matching reply
// arrives or the reply timeout expires:
//
//	c, err := client.Dial(ctx, "127.0.0.1:9001", 0)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	if err := c.SetRecording(true); err != nil {
//	    return err
//	}
//
// Requests on one Client are serialized. A server Error reply surfaces as an
// error wrapping ErrRejected, except from SendRaw, which returns the reply
// as is.
package client
