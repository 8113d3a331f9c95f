// Package client implements the control client of the cluster.
// It sends typed controls to one node over any transport and decodes the replies.
//
// The package focuses on:
//   - One typed method per control of the protocol table
//   - Integration with the transport and serialization layers
//   - Conversion of negative reply status codes into ControlError values
//
// Key Components:
//
//   - IControlClient: Interface with one method per control. Methods returning a reply
//     payload take the arena.Arena the payload is decoded into.
//
//   - NewControlClient: Factory function that connects the transport and creates a client
//     addressing the node configured as ClientConfig.DestNode.
//
//   - ControlError: Error returned for a reply with a non-zero status, StatusOf extracts the
//     status from a wrapped error.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  DestNode:      protocol.DestCurrent,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:  []string{"/var/run/dctl/dctl.sock"},
//	    RetryCount: 3,
//	  },
//	}
//
//	c, err := client.NewControlClient(config, unix.NewUnixClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer c.Close()
//
//	a := arena.New(0)
//	defer a.Release()
//
//	nodeMap, _ := c.NodeMap(a)
//	for _, n := range nodeMap.Nodes {
//	  fmt.Println(n.PNN, n.Addr, n.Flags)
//	}
//
// Thread Safety:
//
//	The client is thread-safe and can be used concurrently from multiple goroutines.
//	A payload decoded into an arena must not be used after the arena is released.
package client
